package distribution

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/kv"
)

// Record is one issued credential.
type Record struct {
	ID       string
	Subject  string
	Payload  []byte
	IssuedAt time.Time
	Active   bool

	link string
}

// Link is the provisioning link for the record. It is derived from ID,
// Subject and Payload when the record is created or loaded.
func (r Record) Link() string {
	return r.link
}

// PayloadHex returns the payload in its canonical hex form.
func (r Record) PayloadHex() string {
	return carddata.Encode(r.Payload)
}

// storedRecord is the persisted JSON shape. Field names match what provisioned
// devices already hold.
type storedRecord struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CardData  string `json:"cardData"`
	DeepLink  string `json:"deepLink"`
	Timestamp int64  `json:"timestamp"`
	IsActive  bool   `json:"isActive"`
}

func encodeRecords(records []Record) ([]byte, error) {
	stored := make([]storedRecord, len(records))
	for i, r := range records {
		stored[i] = storedRecord{
			ID:        r.ID,
			Username:  r.Subject,
			CardData:  carddata.Encode(r.Payload),
			DeepLink:  r.link,
			Timestamp: r.IssuedAt.UnixMilli(),
			IsActive:  r.Active,
		}
	}
	return kv.MarshalJSON(stored)
}

// decodeRecords parses the persisted array. The link is not trusted from
// storage; link rebuilds it.
func decodeRecords(data []byte, link func(Record) string) ([]Record, error) {
	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(stored))
	for i, s := range stored {
		if s.ID == "" {
			return nil, fmt.Errorf("record %d: missing id", i)
		}
		payload, err := carddata.Decode(s.CardData)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", s.ID, err)
		}
		r := Record{
			ID:       s.ID,
			Subject:  s.Username,
			Payload:  payload,
			IssuedAt: time.UnixMilli(s.Timestamp),
			Active:   s.IsActive,
		}
		r.link = link(r)
		records = append(records, r)
	}
	return records, nil
}
