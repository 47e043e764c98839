package kuro

import "strconv"

const (
	// DefaultServerID is the mainland server.
	DefaultServerID = "76402e5b20be2c39f095a152090afddc"
	// DefaultNetServerID is used for overseas ids outside the known ranges.
	DefaultNetServerID = "591d6af3a3090d8ea00d8f86cf6d7501"

	netPlayerIDFloor = 200_000_000
	netRegionSize    = 100_000_000
)

// netServerIDs maps the leading digit of an overseas player id to its server.
var netServerIDs = map[int]string{
	5: "591d6af3a3090d8ea00d8f86cf6d7501",
	6: "6eb2a235b30d05efd77bedb5cf60999e",
	7: "86d52186155b148b5c138ceb41be9650",
	8: "919752ae5ea09c1ced910dd668a63ffb",
	9: "10cd7254d57e58ae560b15d51e34b4c8",
}

// ServerID derives the server hosting a player from the player id range.
func ServerID(playerID string) string {
	id, err := strconv.Atoi(playerID)
	if err != nil || id < netPlayerIDFloor {
		return DefaultServerID
	}
	if serverID, ok := netServerIDs[id/netRegionSize]; ok {
		return serverID
	}
	return DefaultNetServerID
}
