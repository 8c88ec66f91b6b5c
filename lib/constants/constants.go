package constants

const (
	// SSM parameter holding the per-system server topology, keyed by
	// system identifier.
	ConfigParamPrefix = "/get-log-api/config/"

	// Secrets Manager secret holding SSH credentials, keyed by hostname.
	CredentialsSecretPrefix = "get-log-api/credentials/"

	// S3 prefixes where SES drops inbound mail.
	ReceivedMailPrefix = "receive/"
	ApprovedMailPrefix = "send/"

	// S3 prefix for published archives.
	ArchiveKeyPrefix = "logs/"

	// Ceiling on concurrently held temp files. The execution environment
	// has 10 GiB of ephemeral storage; 8 GiB leaves headroom for the zip
	// being written.
	StorageLimitBytes = 8 << 30

	DefaultSSHPort = 22

	DateLayout = "2006-01-02"
)
