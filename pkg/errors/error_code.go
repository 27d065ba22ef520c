package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation and configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidWeights       ErrorCode = 102
	ErrCodeInvalidStopLoss      ErrorCode = 103
	ErrCodeInvalidTakeProfit    ErrorCode = 104
	ErrCodeInvalidSignal        ErrorCode = 105
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidType          ErrorCode = 107
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeInvalidTimeframe     ErrorCode = 111

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound      ErrorCode = 400
	ErrCodeStrategyConfigError   ErrorCode = 401
	ErrCodeStrategyAlreadyExists ErrorCode = 402
	ErrCodeUnsupportedStrategy   ErrorCode = 403
	ErrCodeVersionMismatch       ErrorCode = 404
	ErrCodeNoActiveStrategy      ErrorCode = 405
	ErrCodeInvalidRule           ErrorCode = 406

	// Trading errors (500-599)
	ErrCodeOrderFailed         ErrorCode = 500
	ErrCodePositionNotFound    ErrorCode = 501
	ErrCodeMarketDataMissing   ErrorCode = 502
	ErrCodeInsufficientBalance ErrorCode = 503
	ErrCodeMaxPositions        ErrorCode = 504
	ErrCodeDuplicatePosition   ErrorCode = 505
	ErrCodePositionClosed      ErrorCode = 506

	// Exchange errors (600-699)
	ErrCodeExchangeTransient ErrorCode = 600
	ErrCodeExchangeTerminal  ErrorCode = 601
	ErrCodeExchangeAuth      ErrorCode = 602

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidTimespan       ErrorCode = 703
	ErrCodeInvalidProvider       ErrorCode = 704

	// Ledger and history errors (800-899)
	ErrCodeLedgerRead   ErrorCode = 800
	ErrCodeLedgerWrite  ErrorCode = 801
	ErrCodeHistoryWrite ErrorCode = 802
	ErrCodeEventPublish ErrorCode = 803
)

// Category returns the hundreds bucket of the code, e.g. 500 for every trading error.
func (c ErrorCode) Category() ErrorCode {
	if c < 100 {
		return ErrCodeUnknown
	}

	return c - c%100
}
