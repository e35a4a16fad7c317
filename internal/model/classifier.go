package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// Classifier maps an assembled, scaled input row to the phishing probability.
type Classifier interface {
	// NumFeatures is the input width the classifier was trained on.
	NumFeatures() int
	// ProbaPositive returns P(phishing | x). len(x) must equal NumFeatures.
	ProbaPositive(x []float64) float64
	// Type names the serialized classifier kind.
	Type() string
}

// classifierSpec is the serialized form shared by every classifier type.
type classifierSpec struct {
	Type         string            `json:"type"`
	NFeatures    int               `json:"n_features"`
	Coef         []float64         `json:"coef,omitempty"`
	Intercept    float64           `json:"intercept,omitempty"`
	Trees        []treeSpec        `json:"trees,omitempty"`
	Init         float64           `json:"init,omitempty"`
	LearningRate float64           `json:"learning_rate,omitempty"`
	Estimators   []json.RawMessage `json:"estimators,omitempty"`
	Weights      []float64         `json:"weights,omitempty"`
}

type treeSpec struct {
	Nodes []treeNode `json:"nodes"`
}

// treeNode is a split node, or a leaf when Left is -1. Samples with
// x[Feature] <= Threshold go left.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

// decodeClassifier parses a serialized classifier of any supported type.
func decodeClassifier(data []byte) (Classifier, error) {
	var spec classifierSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: classifier: %v", ErrCorrupt, err)
	}
	switch spec.Type {
	case "logistic":
		return newLogistic(spec)
	case "forest":
		return newForest(spec)
	case "boosting":
		return newBoosting(spec)
	case "voting":
		return newVoting(spec)
	}
	return nil, fmt.Errorf("%w: unknown classifier type %q", ErrCorrupt, spec.Type)
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// Logistic is a binary logistic regression.
type Logistic struct {
	coef      []float64
	intercept float64
}

func newLogistic(spec classifierSpec) (*Logistic, error) {
	if len(spec.Coef) == 0 {
		return nil, fmt.Errorf("%w: logistic classifier has no coefficients", ErrCorrupt)
	}
	if spec.NFeatures != 0 && spec.NFeatures != len(spec.Coef) {
		return nil, fmt.Errorf("%w: logistic n_features %d but %d coefficients", ErrCorrupt, spec.NFeatures, len(spec.Coef))
	}
	return &Logistic{coef: spec.Coef, intercept: spec.Intercept}, nil
}

func (l *Logistic) NumFeatures() int { return len(l.coef) }
func (l *Logistic) Type() string     { return "logistic" }

func (l *Logistic) ProbaPositive(x []float64) float64 {
	z := l.intercept
	for i, w := range l.coef {
		z += w * x[i]
	}
	return sigmoid(z)
}

// tree is a validated decision tree.
type tree struct {
	nodes []treeNode
}

func newTree(spec treeSpec, nFeatures, valueLen int) (tree, error) {
	if len(spec.Nodes) == 0 {
		return tree{}, fmt.Errorf("%w: empty tree", ErrCorrupt)
	}
	for i, n := range spec.Nodes {
		if n.Left == -1 {
			if len(n.Value) != valueLen {
				return tree{}, fmt.Errorf("%w: leaf %d has %d values, want %d", ErrCorrupt, i, len(n.Value), valueLen)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return tree{}, fmt.Errorf("%w: node %d splits on feature %d of %d", ErrCorrupt, i, n.Feature, nFeatures)
		}
		// children must point forward, so evaluation always terminates
		if n.Left <= i || n.Right <= i || n.Left >= len(spec.Nodes) || n.Right >= len(spec.Nodes) {
			return tree{}, fmt.Errorf("%w: node %d has invalid children", ErrCorrupt, i)
		}
	}
	return tree{nodes: spec.Nodes}, nil
}

func (t tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.Left == -1 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest averages the class distributions of its trees' leaves.
type Forest struct {
	n     int
	trees []tree
}

func newForest(spec classifierSpec) (*Forest, error) {
	if spec.NFeatures <= 0 || len(spec.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest needs n_features and trees", ErrCorrupt)
	}
	f := &Forest{n: spec.NFeatures}
	for _, ts := range spec.Trees {
		t, err := newTree(ts, spec.NFeatures, 2)
		if err != nil {
			return nil, err
		}
		f.trees = append(f.trees, t)
	}
	return f, nil
}

func (f *Forest) NumFeatures() int { return f.n }
func (f *Forest) Type() string     { return "forest" }

func (f *Forest) ProbaPositive(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		v := t.leaf(x)
		if total := v[0] + v[1]; total > 0 {
			sum += v[1] / total
		}
	}
	return sum / float64(len(f.trees))
}

// Boosting is a gradient-boosted ensemble of regression trees on the log-odds.
type Boosting struct {
	n            int
	init         float64
	learningRate float64
	trees        []tree
}

func newBoosting(spec classifierSpec) (*Boosting, error) {
	if spec.NFeatures <= 0 || len(spec.Trees) == 0 || spec.LearningRate <= 0 {
		return nil, fmt.Errorf("%w: boosting needs n_features, trees and a positive learning_rate", ErrCorrupt)
	}
	b := &Boosting{n: spec.NFeatures, init: spec.Init, learningRate: spec.LearningRate}
	for _, ts := range spec.Trees {
		t, err := newTree(ts, spec.NFeatures, 1)
		if err != nil {
			return nil, err
		}
		b.trees = append(b.trees, t)
	}
	return b, nil
}

func (b *Boosting) NumFeatures() int { return b.n }
func (b *Boosting) Type() string     { return "boosting" }

func (b *Boosting) ProbaPositive(x []float64) float64 {
	z := b.init
	for _, t := range b.trees {
		z += b.learningRate * t.leaf(x)[0]
	}
	return sigmoid(z)
}

// Voting is a weighted soft-voting ensemble.
type Voting struct {
	members []Classifier
	weights []float64
	total   float64
}

func newVoting(spec classifierSpec) (*Voting, error) {
	if len(spec.Estimators) == 0 {
		return nil, fmt.Errorf("%w: voting ensemble has no estimators", ErrCorrupt)
	}
	weights := spec.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(spec.Estimators))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(spec.Estimators) {
		return nil, fmt.Errorf("%w: %d weights for %d estimators", ErrCorrupt, len(weights), len(spec.Estimators))
	}

	v := &Voting{weights: weights}
	for i, raw := range spec.Estimators {
		c, err := decodeClassifier(raw)
		if err != nil {
			return nil, fmt.Errorf("estimator %d: %w", i, err)
		}
		if len(v.members) > 0 && c.NumFeatures() != v.members[0].NumFeatures() {
			return nil, fmt.Errorf("%w: estimator %d expects %d features, estimator 0 expects %d",
				ErrCorrupt, i, c.NumFeatures(), v.members[0].NumFeatures())
		}
		if weights[i] < 0 {
			return nil, fmt.Errorf("%w: negative weight for estimator %d", ErrCorrupt, i)
		}
		v.members = append(v.members, c)
		v.total += weights[i]
	}
	if v.total == 0 {
		return nil, fmt.Errorf("%w: voting weights sum to zero", ErrCorrupt)
	}
	return v, nil
}

func (v *Voting) NumFeatures() int { return v.members[0].NumFeatures() }
func (v *Voting) Type() string     { return "voting" }

func (v *Voting) ProbaPositive(x []float64) float64 {
	var sum float64
	for i, m := range v.members {
		sum += v.weights[i] * m.ProbaPositive(x)
	}
	return sum / v.total
}
