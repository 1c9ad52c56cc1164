// Package dudect detects timing leaks in code that is meant to run in
// constant time.
//
// A target is run many times on inputs from two classes, usually a fixed
// input and random inputs, and the execution times of the classes are
// compared with Welch's t-test. Besides the raw times the test also runs on
// times cropped at several per-batch percentiles, and on squared centred
// times to catch variance differences. A large |t| on any of them is
// evidence that the execution time depends on the input.
//
// A cropped or second-order test only counts once it holds enough samples
// of its own (Policy.MinTestMeasurements, by default 1/12 of the floor).
// The second-order test starts after 10 000 class-0 samples, so it only
// takes part when the floor is raised well above that.
//
// # Usage
//
//	reg := dudect.NewRegistry()
//	reg.MustRegister(dudect.NewOperationTarget("compare",
//	    dudect.FuncOperation(func(in []byte) { compare(in, secret) }),
//	    dudect.NewZeroGenerator(0), 16, 0))
//
//	results, err := dudect.RunAll(reg, dudect.WithLogger(logrus.StandardLogger()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range results {
//	    fmt.Println(r.Target, r)
//	}
//
// # Verdicts
//
// A try keeps measuring batches until its raw test holds 10 000 samples and
// then compares the largest |t| of the eligible tests against 10 and 500. A session runs up to ten
// tries and passes on the first try without a leak, so a Pass means "no leak
// observed", never "constant time".
//
// # Measurement
//
// OperationMeasurer and OperationTable time Go functions with the cycle
// counter on amd64 (RDTSC) and arm64 (CNTVCT_EL0), and with time.Now
// elsewhere. Targets with their own timing source implement Measurer.
package dudect
