package beacon

import "github.com/jamiefaye/haywire-sub001/internal/apperr"

// Validate checks a decoded page against every invariant spec.md §4.6 and
// §8 require before a reader may trust it: magic, session-id sentinels,
// protocol version, class range, page-index bounds, and the tear check
// (VersionTop == VersionBottom). expectedSessionID, when non-nil, is the
// session id a reader observed at startup; a page from a different session
// is rejected as stale.
func Validate(h Header, versionBottom uint32, expectedSessionID *uint32) error {
	if h.Magic1 != Magic1 || h.Magic2 != Magic2 {
		return apperr.New(apperr.Malformed, "beacon magic mismatch")
	}
	if h.SessionID == InvalidSessionIDZero || h.SessionID == InvalidSessionIDAll {
		return apperr.New(apperr.Malformed, "invalid beacon session id")
	}
	if h.ProtocolVersion != ProtocolVersion {
		return apperr.New(apperr.Malformed, "unsupported beacon protocol version")
	}
	class := Class(h.BeaconClass)
	if !class.Valid() {
		return apperr.New(apperr.Malformed, "beacon class out of range")
	}
	if h.TotalPages == 0 || h.TotalPages > MaxTotalPages || h.PageIndex >= h.TotalPages {
		return apperr.New(apperr.Malformed, "beacon page index/total out of bounds")
	}
	if h.VersionTop != versionBottom {
		return apperr.New(apperr.StaleBeacon, "beacon page failed tear check")
	}
	if expectedSessionID != nil && h.SessionID != *expectedSessionID {
		return apperr.New(apperr.StaleBeacon, "beacon session id changed since startup")
	}
	return nil
}

// LooksLikeBeaconStart reports whether the first 8 bytes of data are the
// magic pair, the cheap pre-filter the scanner applies to every
// page-sized window before the fuller Validate check, per spec.md §4.6:
// "For each page, check the first 8 bytes for the beacon magic pair."
func LooksLikeBeaconStart(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	m1 := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	m2 := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	return m1 == Magic1 && m2 == Magic2
}
