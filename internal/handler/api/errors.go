package api

import (
	"errors"

	"CoinCast/internal/domain/models"
	"CoinCast/internal/repository"
	xhttp "CoinCast/pkg/http"
)

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.ConflictError("ERR_NO_ALIGNED_DATA", "no aligned market data yet").WithError(err)
	case errors.Is(err, models.ErrShapeMismatch):
		return xhttp.UnprocessableError("ERR_SHAPE_MISMATCH", "feature window does not match the model input").WithError(err)
	case errors.Is(err, models.ErrScalerFeatureMismatch):
		return xhttp.UnprocessableError("ERR_SCALER_MISMATCH", "feature window does not match the scaler").WithError(err)
	case errors.Is(err, models.ErrPredictionDisabled):
		return xhttp.ServiceUnavailableError("ERR_PREDICTION_DISABLED", "prediction is disabled").WithError(err)
	case errors.Is(err, models.ErrModelInference):
		return xhttp.BadGatewayError("ERR_MODEL_INFERENCE", "model inference failed").WithError(err)
	case errors.Is(err, repository.ErrQueryUnsupported):
		return xhttp.ServiceUnavailableError("ERR_ARCHIVE_UNAVAILABLE", "archive backend does not serve history").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
