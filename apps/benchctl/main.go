package main

import "github.com/osbench/osbench/apps/benchctl/cmd"

func main() {
	cmd.Execute()
}
