// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package main

import (
	"os"

	"github.com/shuowencs/Crossover-Jackknife/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
