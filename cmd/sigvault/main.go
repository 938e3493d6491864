// Command sigvault exports heterogeneous biosignal recordings into one
// self-describing container file, driven by a JSON job description.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/sigvault/internal/export"
	"github.com/banshee-data/sigvault/internal/version"
)

func main() {
	var configPath string
	var validateOnly bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to the job description (JSON)")
	flag.BoolVar(&validateOnly, "validate-only", false, "validate the job description and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("sigvault %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if configPath == "" {
		fmt.Fprintf(os.Stderr, "usage: sigvault -config <job.json> [-validate-only]\n\nregistered data types: %s\n",
			strings.Join(export.DataTypes(), ", "))
		os.Exit(1)
	}

	job, err := export.LoadJob(configPath)
	if err != nil {
		// An invalid job description fails validate-only runs too.
		log.Fatalf("load job: %v", err)
	}
	if validateOnly {
		log.Printf("%s: job description is valid (%d sources)", configPath, len(job.Datasets))
		return
	}

	if err := export.Run(job); err != nil {
		log.Fatalf("export failed: %v", err)
	}
	log.Printf("export complete: %s", job.Output.Filename)
}
