package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/your-org/price-horizon-learner/internal/dataset"
	"github.com/your-org/price-horizon-learner/internal/series"
)

// ErrFeatureMismatch is returned when a model receives a vector of the wrong width.
var ErrFeatureMismatch = errors.New("learning: feature width mismatch")

// Modelは学習済みモデルのインターフェースです。
type Model interface {
	// Predictは特徴量ベクトルから今後horizon日分の終値を返します。
	Predict(features []float64) ([]float64, error)
	// Kindはモデルの種類を返します。
	Kind() string
}

// Hyperparameters control a training run.
type Hyperparameters struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
}

// TrainResult is a fitted model with its final training loss (mean squared
// error in price units over the training set).
type TrainResult struct {
	RunID     string    `json:"run_id"`
	Model     Model     `json:"-"`
	Loss      float64   `json:"loss"`
	Examples  int       `json:"examples"`
	TrainedAt time.Time `json:"trained_at"`
}

// Trainerはデータセットからモデルを学習します。
type Trainer interface {
	Train(ctx context.Context, instrument string, ds dataset.Dataset, hp Hyperparameters) (TrainResult, error)
}

// NewRunID returns <TICKER>_<UTC yyyymmddThhmmss>_<6 hex>.
func NewRunID(ticker string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(ticker), now.UTC().Format("20060102T150405"), suffix)
}

func checkTrainable(ds dataset.Dataset) error {
	if ds.Len() == 0 {
		return fmt.Errorf("%w: no examples to train on", series.ErrInsufficientData)
	}
	if len(ds.Labels) != ds.Len() {
		return fmt.Errorf("%w: %d examples but %d labels", series.ErrMalformedInput, ds.Len(), len(ds.Labels))
	}
	return nil
}

// PersistenceModel predicts the current price for every future day.
type PersistenceModel struct {
	horizon int
}

// Predict repeats features[0], the current price.
func (m *PersistenceModel) Predict(features []float64) ([]float64, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: empty feature vector", ErrFeatureMismatch)
	}
	out := make([]float64, m.horizon)
	for i := range out {
		out[i] = features[0]
	}
	return out, nil
}

// Kind returns "persistence".
func (m *PersistenceModel) Kind() string { return "persistence" }

// PersistenceTrainer fits the naive baseline. Hyperparameters are ignored.
type PersistenceTrainer struct {
	now func() time.Time
}

// NewPersistenceTrainer creates a PersistenceTrainer.
func NewPersistenceTrainer() *PersistenceTrainer {
	return &PersistenceTrainer{now: time.Now}
}

// Train builds the model and scores it on the dataset.
func (t *PersistenceTrainer) Train(ctx context.Context, instrument string, ds dataset.Dataset, hp Hyperparameters) (TrainResult, error) {
	if err := checkTrainable(ds); err != nil {
		return TrainResult{}, err
	}
	x, y := ds.Matrix()
	m := &PersistenceModel{horizon: len(y[0])}
	loss, err := meanSquaredError(m, x, y)
	if err != nil {
		return TrainResult{}, err
	}
	now := t.now()
	return TrainResult{RunID: NewRunID(instrument, now), Model: m, Loss: loss, Examples: ds.Len(), TrainedAt: now}, nil
}

// LinearModel is a multi-output linear regression on standardised features.
type LinearModel struct {
	inScale  scaler
	outScale scaler
	// weights is (features+1) x horizon; row 0 is the intercept.
	weights *mat.Dense
}

// Predict returns the horizon closes for one feature vector.
func (m *LinearModel) Predict(features []float64) ([]float64, error) {
	rows, cols := m.weights.Dims()
	if len(features) != rows-1 {
		return nil, fmt.Errorf("%w: got %d features, model expects %d", ErrFeatureMismatch, len(features), rows-1)
	}
	z := append([]float64{1}, m.inScale.transform(features)...)
	var out mat.VecDense
	out.MulVec(m.weights.T(), mat.NewVecDense(len(z), z))

	pred := make([]float64, cols)
	for j := range pred {
		pred[j] = out.AtVec(j)
	}
	return m.outScale.inverse(pred), nil
}

// Kind returns "linear".
func (m *LinearModel) Kind() string { return "linear" }

// LinearTrainer fits LinearModel with full-batch gradient descent on the
// mean squared error, one step per epoch.
type LinearTrainer struct {
	defaultLearningRate float64
	now                 func() time.Time
}

// NewLinearTrainer creates a LinearTrainer. learningRate is used when a run
// does not set one.
func NewLinearTrainer(learningRate float64) *LinearTrainer {
	if learningRate <= 0 {
		learningRate = 0.05
	}
	return &LinearTrainer{defaultLearningRate: learningRate, now: time.Now}
}

// Train fits the model for hp.Epochs epochs. Cancelling ctx stops between epochs.
func (t *LinearTrainer) Train(ctx context.Context, instrument string, ds dataset.Dataset, hp Hyperparameters) (TrainResult, error) {
	if err := checkTrainable(ds); err != nil {
		return TrainResult{}, err
	}
	if hp.Epochs < 1 {
		return TrainResult{}, fmt.Errorf("%w: epochs must be positive, got %d", series.ErrInvalidParameters, hp.Epochs)
	}
	lr := hp.LearningRate
	if lr <= 0 {
		lr = t.defaultLearningRate
	}

	x, y := ds.Matrix()
	n, p, h := len(x), len(x[0]), len(y[0])
	inScale, outScale := fitScaler(x), fitScaler(y)

	X := mat.NewDense(n, p+1, nil)
	Y := mat.NewDense(n, h, nil)
	for i := 0; i < n; i++ {
		X.SetRow(i, append([]float64{1}, inScale.transform(x[i])...))
		Y.SetRow(i, outScale.transform(y[i]))
	}

	W := mat.NewDense(p+1, h, nil)
	var resid, grad mat.Dense
	step := -lr * 2 / float64(n)
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return TrainResult{}, err
		}
		resid.Mul(X, W)
		resid.Sub(&resid, Y)
		grad.Mul(X.T(), &resid)
		grad.Scale(step, &grad)
		W.Add(W, &grad)
	}

	m := &LinearModel{inScale: inScale, outScale: outScale, weights: W}
	loss, err := meanSquaredError(m, x, y)
	if err != nil {
		return TrainResult{}, err
	}
	now := t.now()
	return TrainResult{RunID: NewRunID(instrument, now), Model: m, Loss: loss, Examples: n, TrainedAt: now}, nil
}

func meanSquaredError(m Model, x, y [][]float64) (float64, error) {
	var sum float64
	var count int
	for i := range x {
		pred, err := m.Predict(x[i])
		if err != nil {
			return 0, err
		}
		for j, want := range y[i] {
			d := pred[j] - want
			sum += d * d
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

var (
	_ Trainer = (*PersistenceTrainer)(nil)
	_ Trainer = (*LinearTrainer)(nil)
)
