// detect-route-leaks runs the Leak Detector (and, optionally, the
// Parameter Fitter) over a pair of processed series stores from the
// command line, matching the detect_route_leaks.py CLI in
// original_source/.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ANSSI-FR/route-leaks/internal/detect"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/internal/fitter"
	"github.com/ANSSI-FR/route-leaks/internal/seriesstore"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

func main() {
	params := models.DefaultParams()

	out := flag.String("out", "", "write results to this file instead of stdout")
	flag.Float64Var(&params.PfxPeakMinValue, "pfx_peak_min_value", params.PfxPeakMinValue, "minimum peak magnitude for the prefix series")
	flag.Float64Var(&params.CflPeakMinValue, "cfl_peak_min_value", params.CflPeakMinValue, "minimum peak magnitude for the conflict series")
	flag.Float64Var(&params.MaxNbPeaks, "max_nb_peaks", params.MaxNbPeaks, "maximum number of other peaks at least as high as a candidate peak for it to be kept")
	flag.Float64Var(&params.PercentSimilarity, "percent_similarity", params.PercentSimilarity, "minimum closeness to the series maximum")
	flag.Float64Var(&params.PercentStd, "percent_std", params.PercentStd, "minimum standard-deviation impact of a candidate peak")
	fitParams := flag.Bool("fit_params", false, "run the Parameter Fitter instead of detection, and emit the fitted parameters")
	workerCount := flag.Int("workers", 0, "worker pool size for --fit_params (0 = max(1, NumCPU()/2))")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s PFX_FILE CFL_FILE [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	pfxPath, cflPath := flag.Arg(0), flag.Arg(1)

	pfx, cfl, err := seriesstore.LoadPair(pfxPath, cflPath)
	if err != nil {
		enginelog.Error("%v", err)
		os.Exit(1)
	}

	var result interface{}
	if *fitParams {
		results, err := fitter.Sweep(pfx.Data, cfl.Data, *workerCount)
		if err != nil {
			enginelog.Error("%v", err)
			os.Exit(1)
		}
		result = results
	} else {
		startDate := pfx.StartDate
		if startDate == "" {
			startDate = cfl.StartDate
		}
		leaks, err := detect.Detect(pfx.Data, cfl.Data, params, startDate)
		if err != nil {
			enginelog.Error("%v", err)
			os.Exit(1)
		}
		result = leaks
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		enginelog.Error("encoding result: %v", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		enginelog.Error("writing %s: %v", *out, err)
		os.Exit(1)
	}
}
