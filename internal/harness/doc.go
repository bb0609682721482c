// Package harness runs plan-validation scenarios.
//
// A scenario names a plan file, the output blobs to inspect, the backend each
// output is expected on, and one assertion:
//
//   - tolerance: two outputs (computed, reference) must agree element-wise
//     within an absolute tolerance.
//   - threshold: a single-element output must be strictly above a bound.
//
// # Scenario Format
//
// Builtin returns the fixed scenario table. Additional tables can be loaded
// from YAML:
//
//	scenarios:
//	  - name: toy_regression
//	    description: "SGD on a 3-vector converges to the ground truth"
//	    plan: data/toy/toy_regression.yaml
//	    dtype: float32
//	    assertion: tolerance
//	    tolerance: 0.005
//	    outputs:
//	      - blob: W
//	      - blob: W_gt
//	  - name: mnist_lenet_classification_gpu
//	    plan: data/mnist/mnist_lenet_gpu.yaml
//	    assertion: threshold
//	    threshold: 0.90
//	    large: true
//	    outputs:
//	      - blob: accuracy
//	        backend: accelerator
//
// # Execution
//
// Every scenario runs in isolation:
//
//  1. Load the plan (root directory + scenario plan path)
//  2. Open a fresh accelerator device and workspace
//  3. Run the plan
//  4. Fetch each output blob and check its dtype and backend
//  5. Materialize outputs to host memory
//  6. Evaluate the assertion
//
// The device and workspace are released on every exit path. A scenario either
// passes or fails with exactly one classified cause (see FailureKind); there
// is no partial pass, and one scenario's failure never stops the next.
//
// # Usage
//
//	runner := &harness.Runner{Root: "/data/planverify"}
//	report := runner.RunAll(ctx, harness.Select(harness.Builtin(), harness.Filter{}))
//	for _, r := range report.Results {
//	    if !r.Pass {
//	        log.Printf("%s: %s: %s", r.Scenario, r.Kind, r.Message)
//	    }
//	}
package harness
