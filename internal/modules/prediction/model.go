package prediction

import (
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ModelTypeRidge identifies ridge severity models in model_versions.
const ModelTypeRidge = "ridge_severity"

// DefaultLambda is the L2 penalty used for new models.
const DefaultLambda = 1.0

var ErrNotFitted = errors.New("model is not fitted")

// SeverityModel predicts event severity from a feature matrix.
type SeverityModel interface {
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
	MarshalBinary() ([]byte, error)
}

// RidgeModel is an L2-regularised linear regression on standardised
// features. The intercept is the training mean of the target.
type RidgeModel struct {
	Coef      []float64 `msgpack:"coef"`
	Means     []float64 `msgpack:"means"`
	Scales    []float64 `msgpack:"scales"`
	Intercept float64   `msgpack:"intercept"`
	Lambda    float64   `msgpack:"lambda"`
}

// NewRidgeModel returns an unfitted model.
func NewRidgeModel(lambda float64) *RidgeModel {
	return &RidgeModel{Lambda: lambda}
}

// Fit solves (XᵀX + λI)β = Xᵀ(y - ȳ) on standardised columns.
func (m *RidgeModel) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(y) != n {
		return fmt.Errorf("got %d rows but %d targets", n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return fmt.Errorf("no feature columns")
	}
	for i, row := range x {
		if len(row) != p {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), p)
		}
	}
	if m.Lambda <= 0 {
		m.Lambda = DefaultLambda
	}

	m.Means = make([]float64, p)
	m.Scales = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std == 0 {
			std = 1
		}
		m.Means[j] = mean
		m.Scales[j] = std
	}

	xs := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xs.Set(i, j, (x[i][j]-m.Means[j])/m.Scales[j])
		}
	}

	m.Intercept = stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-m.Intercept)
	}

	var gram mat.Dense
	gram.Mul(xs.T(), xs)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+m.Lambda)
	}
	var xty mat.VecDense
	xty.MulVec(xs.T(), yc)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &xty); err != nil {
		return fmt.Errorf("failed to solve ridge system: %w", err)
	}
	m.Coef = make([]float64, p)
	copy(m.Coef, beta.RawVector().Data)
	return nil
}

// Predict returns one severity estimate per row.
func (m *RidgeModel) Predict(x [][]float64) ([]float64, error) {
	if len(m.Coef) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(m.Coef) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), len(m.Coef))
		}
		v := m.Intercept
		for j, c := range m.Coef {
			v += c * (row[j] - m.Means[j]) / m.Scales[j]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite prediction for row %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// MarshalBinary encodes the fitted parameters with msgpack.
func (m *RidgeModel) MarshalBinary() ([]byte, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ridge model: %w", err)
	}
	return b, nil
}

// DecodeRidgeModel restores a model written by MarshalBinary.
func DecodeRidgeModel(b []byte) (*RidgeModel, error) {
	var m RidgeModel
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to decode ridge model: %w", err)
	}
	if len(m.Coef) == 0 || len(m.Means) != len(m.Coef) || len(m.Scales) != len(m.Coef) {
		return nil, fmt.Errorf("ridge snapshot is incomplete")
	}
	return &m, nil
}
