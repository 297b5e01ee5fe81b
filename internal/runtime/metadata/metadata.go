package metadata

// Header keys attached to notifications published through a message transport.
// Transports without a native subject field carry the subject here.
const (
	KeySubject         = "alertflow_subject"
	KeyAlertID         = "alertflow_alert_id"
	KeyCategory        = "alertflow_category"
	KeyService         = "alertflow_service"
	KeySourceMessageID = "alertflow_source_message_id"
	KeyContentType     = "content-type"

	ContentTypeJSON = "application/json"
)

// Metadata represents the headers carried alongside a notification.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
// Empty values are skipped so optional headers never show up blank.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// Subject returns the notification subject header.
func (m Metadata) Subject() string {
	return m[KeySubject]
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
