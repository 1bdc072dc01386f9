// classify-route-leaks runs the Model Runner over a pair of processed
// series stores from the command line, matching the classification.py
// CLI in original_source/.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ANSSI-FR/route-leaks/internal/classifier"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/internal/seriesstore"
)

func main() {
	out := flag.String("out", "", "write results to this file instead of stdout")
	modelPath := flag.String("model", "", "path to a fitted model artefact (gob-encoded)")
	vectorsPath := flag.String("feature_vectors", "", "path to a precomputed feature-vectors CSV")
	vectorLabelsPath := flag.String("feature_labels", "", "path to the labels CSV matching --feature_vectors")
	trainingCSV := flag.String("training_csv", "", "path to a canonical pfx/cfl training CSV")
	trainingLabels := flag.String("training_labels", "", "path to the labels CSV matching --training_csv")
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

	model, err := classifier.Load(classifier.ArtefactPaths{
		FittedModelPath:    *modelPath,
		FeatureVectorsPath: *vectorsPath,
		FeatureLabelsPath:  *vectorLabelsPath,
		TrainingCSVPath:    *trainingCSV,
		TrainingLabelsPath: *trainingLabels,
	})
	if err != nil {
		enginelog.Error("%v", err)
		os.Exit(1)
	}

	result := classifier.Classify(model, pfx.Data, cfl.Data)

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
