package shared

// Version of the AuraAI client library.
const Version = "0.2.0"
