package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// Destination is one parsed upstream address.
type Destination struct {
	Name string
	URL  *url.URL
}

// Cluster spreads requests over its destinations in round-robin order.
type Cluster struct {
	ID           string
	destinations []*Destination
	next         atomic.Uint64
}

// NewCluster parses the destinations of cfg.
func NewCluster(cfg config.Cluster) (*Cluster, error) {
	c := &Cluster{ID: cfg.ClusterID}
	for i, d := range cfg.Destinations {
		u, err := url.Parse(d.Address)
		if err != nil {
			return nil, &DestinationError{ClusterID: cfg.ClusterID, Address: d.Address, Err: err}
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, &DestinationError{ClusterID: cfg.ClusterID, Address: d.Address,
				Err: errors.New("address must be an absolute http or https URL")}
		}
		if u.RawQuery != "" || u.Fragment != "" {
			return nil, &DestinationError{ClusterID: cfg.ClusterID, Address: d.Address,
				Err: errors.New("address must not carry a query or fragment")}
		}
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""

		name := d.Name
		if name == "" {
			name = fmt.Sprintf("%s-%d", cfg.ClusterID, i)
		}
		c.destinations = append(c.destinations, &Destination{Name: name, URL: u})
	}
	return c, nil
}

// Destinations returns the cluster's destinations.
func (c *Cluster) Destinations() []*Destination {
	out := make([]*Destination, len(c.destinations))
	copy(out, c.destinations)
	return out
}

// Next returns the next destination.
func (c *Cluster) Next() (*Destination, error) {
	n := len(c.destinations)
	if n == 0 {
		return nil, util.ErrNoDestination
	}
	i := c.next.Add(1) - 1
	return c.destinations[i%uint64(n)], nil
}
