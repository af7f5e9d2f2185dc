package encryption

// ErrorCode classifies failures reported through asynchronous error
// callbacks, where no error value can be returned to the caller.
type ErrorCode int

const (
	ErrorCodeTimeout ErrorCode = iota + 1
	ErrorCodeInvalidEncryptedFormat
	ErrorCodeUnsupportedEncryptionScheme
	ErrorCodeNoDecryptKey
	ErrorCodeEncryptionFailure
	ErrorCodeDecryptionFailure
	ErrorCodeDataRetrievalFailure
	ErrorCodeKeyRetrievalFailure
	ErrorCodeGeneral
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeTimeout:
		return "timeout"
	case ErrorCodeInvalidEncryptedFormat:
		return "invalid-encrypted-format"
	case ErrorCodeUnsupportedEncryptionScheme:
		return "unsupported-encryption-scheme"
	case ErrorCodeNoDecryptKey:
		return "no-decrypt-key"
	case ErrorCodeEncryptionFailure:
		return "encryption-failure"
	case ErrorCodeDecryptionFailure:
		return "decryption-failure"
	case ErrorCodeDataRetrievalFailure:
		return "data-retrieval-failure"
	case ErrorCodeKeyRetrievalFailure:
		return "key-retrieval-failure"
	}
	return "general"
}

// OnError receives asynchronous failures.
type OnError func(code ErrorCode, message string)
