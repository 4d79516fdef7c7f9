package provision

import "github.com/iliyamo/theater-qr-provisioning/internal/model"

// ProvisionedIndex derives the set of QR names that already have a code.
func ProvisionedIndex(codes []model.ProvisionedCode) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c.QRName] = struct{}{}
	}
	return out
}

// EligibleNames returns the names an operator may still provision: active
// registry entries with no code on file.  The name under edit is always
// kept, whatever its state, so an existing code can be reopened.  The
// result preserves registry order.
//
// This filter only shapes what the operator is offered.  Duplicate
// issuance is prevented by the UNIQUE (theater_id, qr_name) constraint.
func EligibleNames(all []model.QRName, provisioned map[string]struct{}, editing string) []model.QRName {
	out := make([]model.QRName, 0, len(all))
	for _, n := range all {
		if editing != "" && n.QRName == editing {
			out = append(out, n)
			continue
		}
		if !n.IsActive {
			continue
		}
		if _, taken := provisioned[n.QRName]; taken {
			continue
		}
		out = append(out, n)
	}
	return out
}
