package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"delta-hedge-bot/internal/strategy"

	"github.com/go-playground/validator/v10"
)

var ErrConfig = errors.New("invalid settings")

var validate = validator.New(validator.WithRequiredStructEnabled())

type Settings struct {
	DeltaThreshold  float64 `json:"deltaThreshold" msgpack:"deltaThreshold" validate:"gte=0"`
	CheckIntervalMS int64   `json:"checkIntervalMs" msgpack:"checkIntervalMs" validate:"gt=0"`
	MinHedgeSize    float64 `json:"minHedgeSize" msgpack:"minHedgeSize" validate:"gte=0"`
	HedgeProductID  int     `json:"hedgeProductId" msgpack:"hedgeProductId" validate:"gt=0"`
}

// SettingsPatch carries a partial update. Nil fields are left unchanged.
type SettingsPatch struct {
	DeltaThreshold  *float64 `json:"deltaThreshold,omitempty"`
	CheckIntervalMS *int64   `json:"checkIntervalMs,omitempty"`
	MinHedgeSize    *float64 `json:"minHedgeSize,omitempty"`
	HedgeProductID  *int     `json:"hedgeProductId,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.DeltaThreshold == nil && p.CheckIntervalMS == nil && p.MinHedgeSize == nil && p.HedgeProductID == nil
}

func (s Settings) Validate() error {
	if math.IsNaN(s.DeltaThreshold) || math.IsInf(s.DeltaThreshold, 0) {
		return fmt.Errorf("%w: deltaThreshold must be a finite number", ErrConfig)
	}
	if math.IsNaN(s.MinHedgeSize) || math.IsInf(s.MinHedgeSize, 0) {
		return fmt.Errorf("%w: minHedgeSize must be a finite number", ErrConfig)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, describe(err))
	}
	return nil
}

// Apply merges the patch and validates the result. restart reports that the
// check interval changed, which requires the ticker to be rebuilt.
func (s Settings) Apply(p SettingsPatch) (next Settings, restart bool, err error) {
	next = s
	if p.DeltaThreshold != nil {
		next.DeltaThreshold = *p.DeltaThreshold
	}
	if p.CheckIntervalMS != nil {
		next.CheckIntervalMS = *p.CheckIntervalMS
	}
	if p.MinHedgeSize != nil {
		next.MinHedgeSize = *p.MinHedgeSize
	}
	if p.HedgeProductID != nil {
		next.HedgeProductID = *p.HedgeProductID
	}
	if err := next.Validate(); err != nil {
		return s, false, err
	}
	return next, next.CheckIntervalMS != s.CheckIntervalMS, nil
}

func (s Settings) Interval() time.Duration {
	return time.Duration(s.CheckIntervalMS) * time.Millisecond
}

func (s Settings) Policy() strategy.Policy {
	return strategy.Policy{DeltaThreshold: s.DeltaThreshold, MinHedgeSize: s.MinHedgeSize}
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must be %s %s", jsonName(fe.Field()), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}

func jsonName(field string) string {
	switch field {
	case "DeltaThreshold":
		return "deltaThreshold"
	case "CheckIntervalMS":
		return "checkIntervalMs"
	case "MinHedgeSize":
		return "minHedgeSize"
	case "HedgeProductID":
		return "hedgeProductId"
	}
	return field
}
