package harness

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/planverify/internal/blob"
)

// Plan paths relative to the data root.
const (
	ToyRegressionPlan             = "data/toy/toy_regression.yaml"
	MNISTLinearClassificationPlan = "data/mnist/linear_classifier_plan.yaml"
	MNISTTwoLayerReluPlan         = "data/mnist/mnist_relu_network.yaml"
	MNISTLeNetPlan                = "data/mnist/mnist_lenet.yaml"
	MNISTLeNetGPUPlan             = "data/mnist/mnist_lenet_gpu.yaml"
	MNISTLeNetNHWCPlan            = "data/mnist/mnist_lenet_nhwc.yaml"
	MNISTLeNetNHWCGPUPlan         = "data/mnist/mnist_lenet_nhwc_gpu.yaml"
	MNISTLeNetGroupConvPlan       = "data/mnist/mnist_lenet_group_convolution.yaml"
	MNISTLeNetGroupConvNHWCPlan   = "data/mnist/mnist_lenet_group_convolution_nhwc.yaml"
)

const accuracyBlob = "accuracy"

// Builtin returns the fixed scenario table. Each call returns a fresh slice.
func Builtin() []Scenario {
	return []Scenario{
		{
			Name:        "toy_regression",
			Description: "Toy linear regression converges to the ground-truth weights",
			Plan:        ToyRegressionPlan,
			DType:       blob.Float32,
			Assertion:   AssertTolerance,
			Outputs:     []Output{{Blob: "W"}, {Blob: "W_gt"}},
			Tolerance:   0.005,
		},
		accuracyScenario("mnist_linear_classification", MNISTLinearClassificationPlan, blob.Host, 0.85, false,
			"Linear classifier accuracy above 85%"),
		accuracyScenario("mnist_two_layer_relu_classification", MNISTTwoLayerReluPlan, blob.Host, 0.90, false,
			"Two-layer ReLU network accuracy above 90%"),
		accuracyScenario("mnist_lenet_classification", MNISTLeNetPlan, blob.Host, 0.90, true,
			"LeNet accuracy above 90%"),
		accuracyScenario("mnist_lenet_classification_gpu", MNISTLeNetGPUPlan, blob.Accelerator, 0.90, true,
			"LeNet on the accelerator; accuracy is materialized to host before checking"),
		accuracyScenario("mnist_lenet_nhwc_classification", MNISTLeNetNHWCPlan, blob.Host, 0.90, true,
			"LeNet in NHWC layout accuracy above 90%"),
		accuracyScenario("mnist_lenet_nhwc_classification_gpu", MNISTLeNetNHWCGPUPlan, blob.Accelerator, 0.90, true,
			"LeNet in NHWC layout on the accelerator"),
		accuracyScenario("mnist_lenet_group_conv_classification", MNISTLeNetGroupConvPlan, blob.Host, 0.90, true,
			"LeNet with group convolution accuracy above 90%"),
		accuracyScenario("mnist_lenet_group_conv_nhwc_classification", MNISTLeNetGroupConvNHWCPlan, blob.Host, 0.90, true,
			"LeNet with group convolution in NHWC layout accuracy above 90%"),
	}
}

func accuracyScenario(name, planPath string, backend blob.Backend, threshold float64, large bool, desc string) Scenario {
	return Scenario{
		Name:        name,
		Description: desc,
		Plan:        planPath,
		DType:       blob.Float32,
		Assertion:   AssertThreshold,
		Outputs:     []Output{{Blob: accuracyBlob, Backend: backend}},
		Threshold:   threshold,
		Large:       large,
	}
}

// Filter selects scenarios to run.
type Filter struct {
	// Pattern is a glob matched against scenario names ("" matches all).
	Pattern string

	// IncludeLarge admits scenarios marked Large.
	IncludeLarge bool
}

// Select returns the scenarios matching f, in their original order.
// An invalid pattern matches nothing.
func Select(scenarios []Scenario, f Filter) []Scenario {
	var out []Scenario
	for _, s := range scenarios {
		if s.Large && !f.IncludeLarge {
			continue
		}
		if f.Pattern != "" {
			matched, err := doublestar.Match(f.Pattern, s.Name)
			if err != nil || !matched {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
