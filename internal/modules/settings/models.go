package settings

// Setting keys
const (
	KeyTotalOfficers          = "total_officers"
	KeyArchiveEnabled         = "archive_enabled"
	KeyArchiveBucket          = "archive_bucket"
	KeyArchiveEndpoint        = "archive_endpoint"
	KeyArchiveAccessKeyID     = "archive_access_key_id"
	KeyArchiveSecretAccessKey = "archive_secret_access_key"
)

// SettingDefaults holds the value reported for a key that was never set.
// total_officers has no static default: it is seeded from configuration
// on first start.
var SettingDefaults = map[string]interface{}{
	KeyArchiveEnabled:         false,
	KeyArchiveBucket:          "",
	KeyArchiveEndpoint:        "",
	KeyArchiveAccessKeyID:     "",
	KeyArchiveSecretAccessKey: "",
}

// secretKeys are masked in GetAll.
var secretKeys = map[string]bool{
	KeyArchiveSecretAccessKey: true,
}

// SettingUpdate is the body of PUT /api/settings/{key}.
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
