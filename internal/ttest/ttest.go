// Package ttest implements an online Welch's t-test over two classes.
//
// A Context keeps, per class, the sample count, the running mean and the
// running sum of squared deviations from the mean (Welford's algorithm), so a
// t statistic can be derived at any point without storing samples.
package ttest

import "math"

// Context is the accumulated state of one two-class t-test.
// The zero value is ready to use. Class labels must be 0 or 1.
type Context struct {
	n    [2]float64
	mean [2]float64
	m2   [2]float64
}

// Push folds x into the statistics of class.
func (c *Context) Push(x float64, class uint8) {
	c.n[class]++
	delta := x - c.mean[class]
	c.mean[class] += delta / c.n[class]
	c.m2[class] += delta * (x - c.mean[class])
}

// N returns the number of samples pushed for class.
func (c *Context) N(class uint8) float64 {
	return c.n[class]
}

// Total returns the number of samples pushed across both classes.
func (c *Context) Total() float64 {
	return c.n[0] + c.n[1]
}

// Mean returns the running mean of class. It is 0 until the first push.
func (c *Context) Mean(class uint8) float64 {
	return c.mean[class]
}

// Variance returns the unbiased sample variance of class, or 0 when fewer
// than two samples were pushed.
func (c *Context) Variance(class uint8) float64 {
	if c.n[class] < 2 {
		return 0
	}
	return c.m2[class] / (c.n[class] - 1)
}

// StdErr returns the Welch standard error of the mean difference, or 0 when
// either class has fewer than two samples.
func (c *Context) StdErr() float64 {
	if c.n[0] < 2 || c.n[1] < 2 {
		return 0
	}
	return math.Sqrt(c.Variance(0)/c.n[0] + c.Variance(1)/c.n[1])
}

// Compute returns Welch's t statistic (mean0 - mean1) / stderr.
//
// Fewer than two samples in either class yield 0. With zero variance in both
// classes the result is 0 for equal means and an infinity otherwise.
func (c *Context) Compute() float64 {
	if c.n[0] < 2 || c.n[1] < 2 {
		return 0
	}
	diff := c.mean[0] - c.mean[1]
	se := c.StdErr()
	if se == 0 {
		if diff == 0 {
			return 0
		}
		return math.Copysign(math.Inf(1), diff)
	}
	return diff / se
}

// DegreesOfFreedom returns the Welch–Satterthwaite approximation of the
// degrees of freedom of Compute, or 0 when it is undefined.
func (c *Context) DegreesOfFreedom() float64 {
	if c.n[0] < 2 || c.n[1] < 2 {
		return 0
	}
	a := c.Variance(0) / c.n[0]
	b := c.Variance(1) / c.n[1]
	den := a*a/(c.n[0]-1) + b*b/(c.n[1]-1)
	if den == 0 {
		return 0
	}
	return (a + b) * (a + b) / den
}

// Reset clears all accumulated state.
func (c *Context) Reset() {
	*c = Context{}
}
