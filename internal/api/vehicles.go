package api

import (
	"errors"

	"github.com/wavespoole/carwash/handler"
	"github.com/wavespoole/carwash/pkg/validator"
	"github.com/wavespoole/carwash/svc/vehicle"
)

type vehicleRequest struct {
	VRM string `query:"vrm"`
}

type vehicles struct {
	classifier VehicleClassifier
}

func (h *vehicles) classify(ctx handler.Context, req vehicleRequest) handler.Response {
	if err := validator.Apply(
		validator.RequiredString("vrm", req.VRM),
		validator.ValidRegistration("vrm", req.VRM),
	); err != nil {
		return badParams(err)
	}

	res, err := h.classifier.Classify(ctx, req.VRM)
	switch {
	case err == nil:
		return handler.JSON(res)
	case errors.Is(err, vehicle.ErrVRMRequired):
		return handler.JSONError(handler.ErrBadRequest.WithMessage(err.Error()))
	case errors.Is(err, vehicle.ErrMissingDimensions):
		return handler.JSONError(handler.ErrNotFound.WithMessage("vehicle dimensions not found"))
	case errors.Is(err, vehicle.ErrNotConfigured):
		return handler.JSONError(handler.ErrServiceUnavailable.WithMessage(err.Error()))
	default:
		return handler.JSONError(handler.ErrBadGateway.WithMessage("vehicle lookup failed"))
	}
}
