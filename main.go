/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/soikot-shahriaar/server-maintenance-cms/cmd"

func main() {
	cmd.Execute()
}
