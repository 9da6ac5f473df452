package verify

// DefaultEndpoints are address-reporting services that answer with the
// caller's address as a plain-text body.
var DefaultEndpoints = []string{
	"http://checkip.amazonaws.com",
	"http://ipinfo.io/ip",
	"http://icanhazip.com",
	"http://ifconfig.me/ip",
}
