package vehicle

import "context"

// Looker resolves a registration. *Client satisfies it.
type Looker interface {
	Lookup(ctx context.Context, vrm string) (Vehicle, error)
}

// Result is the response for a classified registration.
type Result struct {
	VRM   string `json:"vrm"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Classification
}

// Service classifies registrations.
type Service struct {
	looker Looker
}

// NewService creates a Service.
func NewService(l Looker) *Service {
	return &Service{looker: l}
}

// Classify looks up vrm and bands the vehicle.
// Returns ErrMissingDimensions when the provider has no usable dimensions.
func (s *Service) Classify(ctx context.Context, vrm string) (Result, error) {
	v, err := s.looker.Lookup(ctx, vrm)
	if err != nil {
		return Result{}, err
	}
	c, err := Classify(v.Dimensions, v.BodyType)
	if err != nil {
		return Result{}, err
	}
	return Result{VRM: v.VRM, Make: v.Make, Model: v.Model, Classification: c}, nil
}
