package driver

import (
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	// ErrConstraintViolation is returned when a uniqueness constraint rejects a write.
	ErrConstraintViolation = errors.New("constraint violation")
	ErrPersonNotFound      = errors.New("person not found")
	ErrFamilyNotFound      = errors.New("family not found")
	ErrReadOnly            = errors.New("write attempted in read transaction")
)

const constraintFailedCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

// translateError maps store-level errors onto the driver sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintFailedCode {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, neoErr.Msg)
	}
	return err
}
