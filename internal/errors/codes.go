// Package errors provides structured error handling for claridoc.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, vocabulary storage)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Internal and model errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal aborts the whole ingestion or query.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeVocabularyIO   = "ERR_210_VOCABULARY_IO"
	ErrCodeDocumentLoad   = "ERR_211_DOCUMENT_LOAD"
	ErrCodeDocumentLocked = "ERR_212_DOCUMENT_LOCKED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput        = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch   = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty          = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidPath         = "ERR_406_INVALID_PATH"
	ErrCodeUnsupportedFileType = "ERR_407_UNSUPPORTED_FILE_TYPE"
	ErrCodeInvalidSession      = "ERR_408_INVALID_SESSION"
	ErrCodeSchemaDetection     = "ERR_410_SCHEMA_DETECTION"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed   = "ERR_504_CHUNKING_FAILED"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
	ErrCodeExtractionFailed = "ERR_510_EXTRACTION_FAILED"
	ErrCodeRerankMalformed  = "ERR_511_RERANK_MALFORMED"
	ErrCodeGenerationFailed = "ERR_512_GENERATION_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSchemaDetection, ErrCodeExtractionFailed, ErrCodeVocabularyIO:
		return SeverityFatal
	case ErrCodeRerankMalformed:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether the caller may retry the whole operation.
// Nothing inside claridoc retries on its own.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeDocumentLocked:
		return true
	default:
		return false
	}
}
