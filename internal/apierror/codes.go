package apierror

// Problem type URIs follow urn:pulse:error:<kind> and are used as the "type"
// member of RFC 9457 problem details.
const (
	// TypeValidation indicates request validation failed (400)
	TypeValidation = "urn:pulse:error:validation"

	// TypeBadRequest indicates a malformed request or an unknown metric,
	// risk or prediction type (400)
	TypeBadRequest = "urn:pulse:error:bad_request"

	// TypeInvalidUUID indicates an invalid identifier in the path (400)
	TypeInvalidUUID = "urn:pulse:error:invalid_uuid"

	// TypeFutureTimestamp indicates a sample timestamp ahead of the server clock (400)
	TypeFutureTimestamp = "urn:pulse:error:future_timestamp"

	// TypeUnauthorized indicates missing or invalid authentication (401)
	TypeUnauthorized = "urn:pulse:error:unauthorized"

	// TypeNotFound indicates the pattern or prediction does not exist (404)
	TypeNotFound = "urn:pulse:error:not_found"

	// TypeConflict indicates a lifecycle change the current state forbids (409)
	TypeConflict = "urn:pulse:error:conflict"

	// TypeLowConfidence indicates a prediction fell below the requested minimum confidence (422)
	TypeLowConfidence = "urn:pulse:error:low_confidence"

	// TypeRateLimit indicates too many requests (429)
	TypeRateLimit = "urn:pulse:error:rate_limit"

	// TypeInternal indicates an unexpected server error (500)
	TypeInternal = "urn:pulse:error:internal"

	// TypeUnavailable indicates the storage backend is temporarily unreachable (503)
	TypeUnavailable = "urn:pulse:error:unavailable"
)

const (
	TitleValidation      = "Validation Error"
	TitleBadRequest      = "Bad Request"
	TitleInvalidUUID     = "Invalid UUID Format"
	TitleFutureTimestamp = "Future Timestamp Not Allowed"
	TitleUnauthorized    = "Authentication Required"
	TitleNotFound        = "Resource Not Found"
	TitleConflict        = "Resource Conflict"
	TitleLowConfidence   = "Confidence Too Low"
	TitleRateLimit       = "Rate Limit Exceeded"
	TitleInternal        = "Internal Server Error"
	TitleUnavailable     = "Service Unavailable"
)
