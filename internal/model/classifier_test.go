package model

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForest(t *testing.T) {
	c, err := decodeClassifier([]byte(`{"type": "forest", "n_features": 2, "trees": [
		{"nodes": [{"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
			{"left": -1, "value": [9, 1]}, {"left": -1, "value": [1, 3]}]},
		{"nodes": [{"feature": 1, "threshold": 10, "left": 1, "right": 2},
			{"left": -1, "value": [4, 0]}, {"left": -1, "value": [0, 4]}]}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumFeatures())
	assert.Equal(t, "forest", c.Type())

	assert.InDelta(t, (0.1+0)/2, c.ProbaPositive([]float64{0, 5}), 1e-9)
	assert.InDelta(t, (0.75+1)/2, c.ProbaPositive([]float64{1, 50}), 1e-9)
}

func TestBoosting(t *testing.T) {
	c, err := decodeClassifier([]byte(`{"type": "boosting", "n_features": 1, "init": -0.5, "learning_rate": 0.1, "trees": [
		{"nodes": [{"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
			{"left": -1, "value": [-2]}, {"left": -1, "value": [3]}]}
	]}`))
	require.NoError(t, err)

	assert.InDelta(t, sigmoid(-0.5-0.2), c.ProbaPositive([]float64{0}), 1e-9)
	assert.InDelta(t, sigmoid(-0.5+0.3), c.ProbaPositive([]float64{1}), 1e-9)
}

func TestVoting(t *testing.T) {
	c, err := decodeClassifier([]byte(`{"type": "voting", "weights": [3, 1], "estimators": [
		{"type": "logistic", "coef": [0], "intercept": 0},
		{"type": "forest", "n_features": 1, "trees": [
			{"nodes": [{"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
				{"left": -1, "value": [1, 0]}, {"left": -1, "value": [0, 1]}]}]}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, c.NumFeatures())

	// logistic always 0.5; forest 0 or 1
	assert.InDelta(t, (3*0.5+0)/4, c.ProbaPositive([]float64{0}), 1e-9)
	assert.InDelta(t, (3*0.5+1)/4, c.ProbaPositive([]float64{1}), 1e-9)
}

func TestDecodeClassifierRejects(t *testing.T) {
	tests := map[string]string{
		"not json":       `{`,
		"unknown type":   `{"type": "svm"}`,
		"empty logistic": `{"type": "logistic"}`,
		"width mismatch": `{"type": "logistic", "n_features": 3, "coef": [1, 2]}`,
		"backward child": `{"type": "forest", "n_features": 1, "trees": [{"nodes": [{"feature": 0, "left": 0, "right": 1}, {"left": -1, "value": [1, 1]}]}]}`,
		"feature range":  `{"type": "forest", "n_features": 1, "trees": [{"nodes": [{"feature": 4, "left": 1, "right": 2}, {"left": -1, "value": [1, 1]}, {"left": -1, "value": [1, 1]}]}]}`,
		"leaf shape":     `{"type": "forest", "n_features": 1, "trees": [{"nodes": [{"left": -1, "value": [1]}]}]}`,
		"no rate":        `{"type": "boosting", "n_features": 1, "trees": [{"nodes": [{"left": -1, "value": [1]}]}]}`,
		"mixed widths":   `{"type": "voting", "estimators": [{"type": "logistic", "coef": [1]}, {"type": "logistic", "coef": [1, 2]}]}`,
		"zero weights":   `{"type": "voting", "weights": [0], "estimators": [{"type": "logistic", "coef": [1]}]}`,
		"weights count":  `{"type": "voting", "weights": [1, 2], "estimators": [{"type": "logistic", "coef": [1]}]}`,
		"no estimators":  `{"type": "voting"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := decodeClassifier([]byte(raw))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestScaler(t *testing.T) {
	s, err := decodeScaler([]byte(`{"mean": [1, 2], "scale": [2, 0]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3}, s.Transform([]float64{4, 5}))

	_, err = decodeScaler([]byte(`{"mean": [1], "scale": []}`))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestVectorizer(t *testing.T) {
	v, err := decodeVectorizer([]byte(`{"vocabulary": {"free": 0, "prize": 1, "free prize": 2}, "idf": [1, 1, 2],
		"ngram_range": [1, 2], "sublinear_tf": true}`))
	require.NoError(t, err)
	assert.Equal(t, 3, v.Width())

	row := v.Transform("FREE free prize")
	// free tf=2 -> 1+ln2, prize 1, "free prize" 1*2
	raw := []float64{1 + math.Log(2), 1, 2}
	norm := math.Sqrt(raw[0]*raw[0] + raw[1]*raw[1] + raw[2]*raw[2])
	for i := range raw {
		assert.InDelta(t, raw[i]/norm, row[i], 1e-9)
	}

	assert.Equal(t, []float64{0, 0, 0}, v.Transform("nothing relevant"))

	_, err = decodeVectorizer([]byte(`{"vocabulary": {"x": 5}, "idf": [1]}`))
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = decodeVectorizer([]byte(`{"idf": [1], "ngram_range": [2, 1]}`))
	assert.ErrorIs(t, err, ErrCorrupt)
}

type fakeS3 struct {
	objects map[string]string
	err     error
	keys    []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *in.Key)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"models/v3/manifest.yaml": "version: 3"}}
	src := &S3Source{client: client, bucket: "artifacts", prefix: "models/v3"}

	rc, err := src.Open(context.Background(), ManifestName)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "version: 3", string(data))

	_, err = src.Open(context.Background(), "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"models/v3/manifest.yaml", "models/v3/missing.json"}, client.keys)
	assert.Equal(t, "s3://artifacts/models/v3", src.String())

	client.err = errors.New("timeout")
	_, err = src.Open(context.Background(), ManifestName)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
