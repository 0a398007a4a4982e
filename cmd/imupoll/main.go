package main

import (
	"flag"
	"os"

	"github.com/golang/glog"
)

func main() {
	defer glog.Flush()

	rootCmd := getRootCmd()
	// Keeps glog from complaining about logging before flag.Parse; cobra fills in the values.
	_ = flag.CommandLine.Parse(nil)
	if err := rootCmd.Execute(); err != nil {
		glog.Errorf("imupoll: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}
