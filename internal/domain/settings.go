package domain

// DefaultSettingsID keys the single guild settings document.
const DefaultSettingsID = "default"

// GuildSettings is the durable process-wide configuration record. It is read
// and rewritten as a whole on every mutation; callers go through the settings
// store's Update(mutator) and never patch fields in place.
type GuildSettings struct {
	SettingsID       string   `json:"settings_id" dynamodbav:"settings_id"`
	AuditChannelID   string   `json:"audit_channel_id" dynamodbav:"audit_channel_id"`
	BlacklistedKerbs []string `json:"blacklisted_kerbs" dynamodbav:"blacklisted_kerbs"`
	ToggleableRoles  []string `json:"toggleable_roles" dynamodbav:"toggleable_roles"`
}

// IsBlacklisted reports whether the kerb is barred from issuance.
func (s *GuildSettings) IsBlacklisted(kerb string) bool {
	for _, k := range s.BlacklistedKerbs {
		if k == kerb {
			return true
		}
	}
	return false
}

// IsToggleable reports whether members may self-toggle the role.
func (s *GuildSettings) IsToggleable(roleID string) bool {
	for _, id := range s.ToggleableRoles {
		if id == roleID {
			return true
		}
	}
	return false
}
