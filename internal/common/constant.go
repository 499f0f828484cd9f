package common

// SyncTokenHeaderName is the HTTP header used to carry the sync token on
// outbound requests to the remote API.
const SyncTokenHeaderName = "Authorization"

// ConfigRowID is the fixed id of the singleton row in the config table.
// All readers and writers of device settings must agree on it.
const ConfigRowID = 1
