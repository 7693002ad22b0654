package domain

import "strings"

// AlumniSuffix marks alumni identities. Alumni verify with their full alumni
// email address; everyone else uses a bare Kerberos id.
const AlumniSuffix = "@alum.mit.edu"

// PrimaryDomainSuffix is rejected on input: members must submit the bare kerb,
// not kerb@mit.edu.
const PrimaryDomainSuffix = "@mit.edu"

// NormalizeKerb lowercases and trims an identity string. All storage keys and
// lookups use the normalized form.
func NormalizeKerb(kerb string) string {
	return strings.ToLower(strings.TrimSpace(kerb))
}

// IsAlumni reports whether the identity is an alumni email address. Alumni
// status is asserted from the address alone and never checked against the
// directory.
func IsAlumni(kerb string) bool {
	return strings.HasSuffix(kerb, AlumniSuffix)
}

// MailboxFor returns the address the verification code is emailed to.
func MailboxFor(kerb string) string {
	if IsAlumni(kerb) {
		return kerb
	}
	return kerb + PrimaryDomainSuffix
}
