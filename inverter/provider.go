package inverter

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownProvider = errors.New("unknown inverter provider")

type Provider string

const (
	SolarEdge Provider = "solaredge"
	Huawei    Provider = "huawei"
)

func Providers() []Provider {
	return []Provider{SolarEdge, Huawei}
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

func (p Provider) String() string {
	return string(p)
}
