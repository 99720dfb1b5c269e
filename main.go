package main

import "github.com/frahmantamala/meter-fleet/cmd"

func main() {
	cmd.Execute()
}
