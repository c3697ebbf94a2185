package main

import "github.com/92Bilal26/ai-junior-bilal/services/scheduler/cli"

func main() {
	cli.Execute()
}
