package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

// LoadPolicy returns the pricing policy for surface. Values missing from the
// file, or the whole file when path is empty, fall back to the defaults.
//
// The file holds one section per surface:
//
//	storefront:
//	  free_delivery_threshold: 200000
//	  delivery_fee: 2000
//	satellite:
//	  order_prefix: TG
func LoadPolicy(path, surface string) (domain.PricingPolicy, error) {
	policy := domain.DefaultPricingPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read policy file: %w", err)
	}

	var sections map[string]yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&sections); err != nil {
		return policy, fmt.Errorf("failed to parse policy file: %w", err)
	}

	for name := range sections {
		if name != SurfaceStorefront && name != SurfaceSatellite {
			return policy, fmt.Errorf("unknown policy section %q", name)
		}
	}

	node, ok := sections[surface]
	if !ok {
		return policy, nil
	}
	if err := node.Decode(&policy); err != nil {
		return policy, fmt.Errorf("failed to parse %s policy: %w", surface, err)
	}

	if err := validatePolicy(policy); err != nil {
		return policy, fmt.Errorf("invalid %s policy: %w", surface, err)
	}
	return policy, nil
}

func validatePolicy(p domain.PricingPolicy) error {
	switch {
	case p.FreeDeliveryThreshold < 0:
		return errors.New("free_delivery_threshold must not be negative")
	case p.DeliveryFee < 0:
		return errors.New("delivery_fee must not be negative")
	case p.VIPThreshold <= 0:
		return errors.New("vip_threshold must be positive")
	case p.OrderPrefix == "":
		return errors.New("order_prefix must not be empty")
	}
	return nil
}
