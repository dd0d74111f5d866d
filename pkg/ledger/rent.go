package ledger

import (
	"encoding/binary"
	"fmt"
)

// RentParamsSize is the packed size of the rent parameter block stored in
// the rent sysvar account: three big-endian uint64 fields, no padding.
const RentParamsSize = 24

// RentParams is the durability (rent) model: an account's data persists
// indefinitely only while its balance meets the exemption threshold for its
// allocated size. Programs read these parameters from the rent sysvar
// account supplied positionally in their account list.
type RentParams struct {
	PerByteYear     uint64 // native units charged per data byte per year
	ExemptionYears  uint64 // years of rent a balance must prepay to be exempt
	AccountOverhead uint64 // fixed per-account byte overhead added to size
}

// DefaultRentParams are written into the rent sysvar at genesis.
func DefaultRentParams() RentParams {
	return RentParams{
		PerByteYear:     10,
		ExemptionYears:  2,
		AccountOverhead: 128,
	}
}

// Pack encodes the parameter block in its fixed wire layout.
func (p RentParams) Pack() [RentParamsSize]byte {
	var out [RentParamsSize]byte
	binary.BigEndian.PutUint64(out[0:8], p.PerByteYear)
	binary.BigEndian.PutUint64(out[8:16], p.ExemptionYears)
	binary.BigEndian.PutUint64(out[16:24], p.AccountOverhead)
	return out
}

// UnpackRentParams decodes a parameter block, rejecting any input that is
// not exactly RentParamsSize bytes.
func UnpackRentParams(b []byte) (RentParams, error) {
	if len(b) != RentParamsSize {
		return RentParams{}, fmt.Errorf("%w: rent params must be %d bytes, got %d", ErrLengthMismatch, RentParamsSize, len(b))
	}
	return RentParams{
		PerByteYear:     binary.BigEndian.Uint64(b[0:8]),
		ExemptionYears:  binary.BigEndian.Uint64(b[8:16]),
		AccountOverhead: binary.BigEndian.Uint64(b[16:24]),
	}, nil
}

// MinimumBalance returns the balance an account of the given data size must
// hold to be exempt from reclaim.
func (p RentParams) MinimumBalance(size int) uint64 {
	return p.PerByteYear * p.ExemptionYears * (uint64(size) + p.AccountOverhead)
}

// IsExempt reports whether a balance/size pair meets the exemption
// threshold.
func (p RentParams) IsExempt(balance uint64, size int) bool {
	return balance >= p.MinimumBalance(size)
}
