package main

import "time"

// Flag structs decouple cobra from the handlers for testing.

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	NoColor    bool
}

// RunFlags covers setup, deploy and cleanup.
type RunFlags struct {
	ConfigPath string
}

type StatusFlags struct {
	ConfigPath string
	Watch      bool
	Interval   time.Duration
}

type WaitFlags struct {
	ConfigPath string
	Timeout    time.Duration
	Interval   time.Duration
}

type ResetFlags struct {
	ConfigPath string
	Force      bool
}

type ServeFlags struct {
	ConfigPath    string
	Listen        string
	BasePath      string
	MetricsListen string
}
