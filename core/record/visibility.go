package record

// Visible reports whether viewer may see rec: the owner always may, as may
// every holder of the assigned role and the assigned user when those fields
// are set. The filter only reads fields; a record with neither assignment nor
// a reachable owner is a data-integrity defect that creation prevents (the
// writer defaults OwnerID to the creator), so there is no special case for
// "both assignments empty" here.
func Visible(rec Record, viewer Viewer) bool {
	if rec.OwnerID == viewer.ID {
		return true
	}
	if rec.AssignedRole != "" && rec.AssignedRole == viewer.Role {
		return true
	}
	if rec.AssignedUserID != "" && rec.AssignedUserID == viewer.ID {
		return true
	}
	return false
}

// FilterVisible returns the order-preserving subsequence of records visible
// to viewer. It is a pure projection: identical inputs yield identical
// outputs regardless of who asks in what order.
func FilterVisible(records []Record, viewer Viewer) []Record {
	visible := make([]Record, 0, len(records))
	for _, rec := range records {
		if Visible(rec, viewer) {
			visible = append(visible, rec)
		}
	}
	return visible
}
