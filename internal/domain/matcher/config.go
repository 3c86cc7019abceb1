package matcher

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/similarity"
	amountcheck "github.com/eshaffer321/ledger-reconciler/internal/domain/validator"
)

// ErrInvalidConfig is returned when a Config fails validation. It signals a
// caller programming error; no matching is attempted.
var ErrInvalidConfig = errors.New("invalid matching config")

// Config holds every weight, threshold and tunable used by the matchers and
// the anomaly detector.
type Config struct {
	AutoThreshold      float64 `yaml:"auto_threshold" validate:"gte=0,lte=1"`
	SuggestedThreshold float64 `yaml:"suggested_threshold" validate:"gte=0,lte=1,ltefield=AutoThreshold"`

	DateWeight   float64 `yaml:"date_weight" validate:"gte=0"`
	AmountWeight float64 `yaml:"amount_weight" validate:"gte=0"`
	TextWeight   float64 `yaml:"text_weight" validate:"gte=0"`

	DateCloseDays int `yaml:"date_close_days" validate:"gte=0,ltefield=DateMaxDays"`
	DateMaxDays   int `yaml:"date_max_days" validate:"gte=0"`

	// Learned supplier fragments add this much to the description score
	LearnedFragmentBoost float64 `yaml:"learned_fragment_boost" validate:"gte=0,lte=1"`

	// Matched pairs may differ by the larger of these before an amount gap is raised
	AmountTolerancePercent  float64 `yaml:"amount_tolerance_percent" validate:"gte=0,lte=100"`
	AmountToleranceAbsolute float64 `yaml:"amount_tolerance_absolute" validate:"gte=0"`

	MaxPaymentWindowDays   int     `yaml:"max_payment_window_days" validate:"gte=0"`
	OutlierMultiplier      float64 `yaml:"outlier_multiplier" validate:"gt=1"`
	OutlierMinSamples      int     `yaml:"outlier_min_samples" validate:"gte=1"`
	DuplicateTextThreshold float64 `yaml:"duplicate_text_threshold" validate:"gte=0,lte=1"`
	MaterialityAmount      float64 `yaml:"materiality_amount" validate:"gte=0"`

	// Workers bounds parallel scoring (0 = GOMAXPROCS)
	Workers int `yaml:"workers" validate:"gte=0"`
}

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		AutoThreshold:           0.8,
		SuggestedThreshold:      0.6,
		DateWeight:              0.4,
		AmountWeight:            0.5,
		TextWeight:              0.1,
		DateCloseDays:           1,
		DateMaxDays:             3,
		LearnedFragmentBoost:    0.3,
		AmountTolerancePercent:  1.0,
		AmountToleranceAbsolute: 0.02,
		MaxPaymentWindowDays:    30,
		OutlierMultiplier:       3.0,
		OutlierMinSamples:       3,
		DuplicateTextThreshold:  0.9,
		MaterialityAmount:       10,
	}
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key, which is what operators edit.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate rejects out-of-range settings with an error wrapping
// ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}

	if c.DateWeight+c.AmountWeight+c.TextWeight == 0 {
		return fmt.Errorf("%w: at least one of date_weight, amount_weight, text_weight must be positive", ErrInvalidConfig)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s (%v) must not exceed %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// Classify maps a confidence onto the three-way split shared by both
// matchers.
func (c Config) Classify(confidence float64) Classification {
	switch {
	case confidence >= c.AutoThreshold:
		return Auto
	case confidence >= c.SuggestedThreshold:
		return Suggested
	default:
		return Unmatched
	}
}

// Weights returns the scoring weights.
func (c Config) Weights() similarity.Weights {
	return similarity.Weights{Date: c.DateWeight, Amount: c.AmountWeight, Text: c.TextWeight}
}

// Window returns the date buckets.
func (c Config) Window() similarity.Window {
	return similarity.Window{CloseDays: c.DateCloseDays, MaxDays: c.DateMaxDays}
}

// Tolerance returns the amount-gap tolerance.
func (c Config) Tolerance() amountcheck.Tolerance {
	return amountcheck.Tolerance{
		Percent:  decimal.NewFromFloat(c.AmountTolerancePercent),
		Absolute: decimal.NewFromFloat(c.AmountToleranceAbsolute),
	}
}
