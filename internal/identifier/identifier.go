// Package identifier resolves cadastral identifiers into geographic
// coordinates through the geodata search service.
package identifier

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DataType is one of the supported cadastral identifier kinds.
type DataType string

// Supported identifier kinds.
const (
	TypeLot           DataType = "LOT"           // parcel lot number
	TypeSTT           DataType = "STT"           // short term tenancy
	TypeGLA           DataType = "GLA"           // government land allocation
	TypeLPP           DataType = "LPP"           // lease plan parcel
	TypeUnit          DataType = "UN"            // unit
	TypeBuildingCSUID DataType = "BUILDINGCSUID" // building cross-reference id
	TypeLotCSUID      DataType = "LOTCSUID"      // lot cross-reference id
	TypePRN           DataType = "PRN"           // property reference number
)

// ErrInvalidIdentifierType signals a data type outside the supported set.
// It is a client-input error and is never retryable.
var ErrInvalidIdentifierType = eris.New("identifier: unsupported data type")

var allTypes = map[DataType]bool{
	TypeLot:           true,
	TypeSTT:           true,
	TypeGLA:           true,
	TypeLPP:           true,
	TypeUnit:          true,
	TypeBuildingCSUID: true,
	TypeLotCSUID:      true,
	TypePRN:           true,
}

// ParseDataType normalizes and validates a data type string.
func ParseDataType(s string) (DataType, error) {
	dt := DataType(strings.ToUpper(strings.TrimSpace(s)))
	if !allTypes[dt] {
		return "", eris.Wrapf(ErrInvalidIdentifierType, "%q", s)
	}
	return dt, nil
}

// Identifier is an immutable (data type, value) pair created per request.
type Identifier struct {
	Type  DataType
	Value string
}
