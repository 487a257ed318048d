// Package kartavya rates the severity of a civic issue photo from the
// predictions of an image classification model.
//
// Quick start:
//
//	k, err := kartavya.New(kartavya.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer k.Close()
//
//	a := k.Analyze(ctx, jpegBytes)
//	fmt.Println(a.Severity, a.ConfidenceScore) // high 45
//
// Predictions from an external classifier can be rated without a model:
//
//	a, err := kartavya.Classify([]kartavya.Prediction{{Label: "fire", Probability: 0.8}})
//
// A Kartavya instance is safe for concurrent use. Create once, reuse across
// requests.
package kartavya
