package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Network enumerates the chains this registrar serves.
type Network string

const (
	NetworkPolkadot Network = "polkadot"
	NetworkKusama   Network = "kusama"
)

// Known returns whether the network is one this registrar serves.
func (n Network) Known() bool {
	return n == NetworkPolkadot || n == NetworkKusama
}

// NetworkAddress is the primary key for identity records: a network tag plus
// an opaque on-chain address. The struct is comparable, so it can be used
// directly as a map key; equality is structural.
type NetworkAddress struct {
	Network Network `json:"network"`
	Address string  `json:"address"`
}

func NewPolkadotAddress(address string) NetworkAddress {
	return NetworkAddress{Network: NetworkPolkadot, Address: address}
}

func NewKusamaAddress(address string) NetworkAddress {
	return NetworkAddress{Network: NetworkKusama, Address: address}
}

func (a NetworkAddress) String() string {
	return fmt.Sprintf("%s:%s", a.Network, a.Address)
}

// ss58Prefix is the domain separator SS58 mixes into its checksum.
var ss58Prefix = []byte("SS58PRE")

// ValidSS58 reports whether the address decodes as an SS58 string with a
// correct blake2b checksum. Intake accepts addresses as opaque strings, so a
// failure here is a reason to warn, not to reject.
func (a NetworkAddress) ValidSS58() bool {
	raw, err := base58.Decode(a.Address)
	if err != nil || len(raw) < 4 {
		return false
	}
	body, checksum := raw[:len(raw)-2], raw[len(raw)-2:]
	sum := blake2b.Sum512(append(append([]byte{}, ss58Prefix...), body...))
	return bytes.Equal(checksum, sum[:2])
}

// UnmarshalJSON rejects unknown network tags so malformed watcher payloads
// fail at the boundary instead of becoming unroutable map keys.
func (a *NetworkAddress) UnmarshalJSON(data []byte) error {
	type plain NetworkAddress
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !Network(p.Network).Known() {
		return fmt.Errorf("unknown network %q", p.Network)
	}
	*a = NetworkAddress(p)
	return nil
}
