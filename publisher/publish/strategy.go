package publish

import "github.com/tokura1222/music-platform/publisher/config"

// Strategy identifies the backend that commits a batch.
type Strategy string

const (
	// StrategyLocal commits in a local working tree and
	// pushes with the git CLI.
	StrategyLocal Strategy = "local"
	// StrategyRemoteAPI builds the commit through the
	// hosting provider's API.
	StrategyRemoteAPI Strategy = "remote-api"
)

// Select returns StrategyRemoteAPI when cfg carries both a
// token and a repository identifier, StrategyLocal
// otherwise.
func Select(cfg config.Config) Strategy {
	if cfg.HasRemoteCredentials() {
		return StrategyRemoteAPI
	}

	return StrategyLocal
}
