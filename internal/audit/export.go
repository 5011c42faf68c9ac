package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"
)

// ExportJSON renders entries as a JSON array.
func ExportJSON(entries []Entry) ([]byte, error) {
	type exportEntry struct {
		ID           string         `json:"id"`
		UserID       string         `json:"userId"`
		Action       string         `json:"action"`
		Resource     string         `json:"resource,omitempty"`
		Severity     string         `json:"severity"`
		FromRole     string         `json:"fromRole,omitempty"`
		ToRole       string         `json:"toRole,omitempty"`
		RestaurantID string         `json:"restaurantId,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
		IPAddress    string         `json:"ipAddress,omitempty"`
		UserAgent    string         `json:"userAgent,omitempty"`
		CreatedAt    string         `json:"createdAt"`
	}
	out := make([]exportEntry, len(entries))
	for i, e := range entries {
		out[i] = exportEntry{
			ID: e.ID, UserID: e.UserID, Action: e.Action, Resource: e.Resource,
			Severity: e.Severity, FromRole: e.FromRole, ToRole: e.ToRole,
			RestaurantID: e.RestaurantID, Metadata: e.Metadata,
			IPAddress: e.IPAddress, UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// ExportCSV renders entries as CSV with a header row.
func ExportCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"id", "user_id", "action", "resource", "severity",
		"from_role", "to_role", "restaurant_id", "metadata", "ip_address", "user_agent", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Metadata) > 0 {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				meta = "marshal error: " + strconv.Quote(err.Error())
			} else {
				meta = string(raw)
			}
		}
		record := []string{e.ID, e.UserID, e.Action, e.Resource, e.Severity,
			e.FromRole, e.ToRole, e.RestaurantID, meta, e.IPAddress, e.UserAgent,
			e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
