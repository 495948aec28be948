// Package snmp fetches raw OID data from managed switches over gosnmp.
// A fetch returns a flat RawValues map; interpreting the payloads is the
// normalizer's job, so one malformed cell never poisons a whole cycle.
package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

const (
	defaultTimeout = 5 * time.Second
	defaultRetries = 1

	// maxOIDsPerGet keeps GET requests under common agent varbind limits.
	maxOIDsPerGet = 24

	// Write operations are paced; switch management planes are slow
	// and a burst of SETs can wedge some agents.
	writesPerSecond = 4
	writeBurst      = 2
)

// Client performs SNMP reads and writes against managed devices. One
// connection is opened per operation; switches handle session churn fine
// and it keeps credential changes effective on the next cycle.
type Client struct {
	logger     *zap.Logger
	timeout    time.Duration
	retries    int
	writeLimit *rate.Limiter
}

// NewClient creates an SNMP client.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		logger:     logger.Named("snmp"),
		timeout:    defaultTimeout,
		retries:    defaultRetries,
		writeLimit: rate.NewLimiter(writesPerSecond, writeBurst),
	}
}

// newGoSNMP builds a configured GoSNMP instance for a device. The instance
// is not yet connected; the caller must call Connect.
func (c *Client) newGoSNMP(ctx context.Context, dev *models.Device) (*gosnmp.GoSNMP, error) {
	port := dev.Port
	if port == 0 {
		port = 161
	}

	g := &gosnmp.GoSNMP{
		Context: ctx,
		Target:  dev.Host,
		Port:    port,
		Timeout: c.timeout,
		Retries: c.retries,
	}

	switch dev.Version {
	case models.SNMPv2c:
		g.Version = gosnmp.Version2c
		g.Community = dev.Creds.Community

	case models.SNMPv3:
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel

		switch dev.Creds.SecurityLevel {
		case "noAuthNoPriv":
			g.MsgFlags = gosnmp.NoAuthNoPriv
		case "authNoPriv":
			g.MsgFlags = gosnmp.AuthNoPriv
		case "authPriv":
			g.MsgFlags = gosnmp.AuthPriv
		default:
			g.MsgFlags = gosnmp.AuthPriv
		}

		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 dev.Creds.Username,
			AuthenticationProtocol:   mapAuthProtocol(dev.Creds.AuthProtocol),
			AuthenticationPassphrase: dev.Creds.AuthPassphrase,
			PrivacyProtocol:          mapPrivProtocol(dev.Creds.PrivacyProtocol),
			PrivacyPassphrase:        dev.Creds.PrivacyPassphrase,
		}

		if dev.Creds.ContextName != "" {
			g.ContextName = dev.Creds.ContextName
		}

	default:
		return nil, fmt.Errorf("unsupported SNMP version: %s", dev.Version)
	}

	return g, nil
}

// Fetch runs the OID plan of one poll category against a device and returns
// every payload keyed by full OID. Optional tables that the agent does not
// implement simply contribute no entries.
func (c *Client) Fetch(ctx context.Context, dev *models.Device, cat models.PollCategory) (RawValues, error) {
	plan := planFor(dev, cat)

	g, err := c.newGoSNMP(ctx, dev)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformed, Op: "configure", Err: err}
	}

	if err := g.Connect(); err != nil {
		return nil, classifyErr("connect", err)
	}
	defer func() { _ = g.Conn.Close() }()

	rv := make(RawValues)

	for start := 0; start < len(plan.scalars); start += maxOIDsPerGet {
		end := start + maxOIDsPerGet
		if end > len(plan.scalars) {
			end = len(plan.scalars)
		}
		if err := c.get(g, plan.scalars[start:end], rv); err != nil {
			return nil, err
		}
	}

	for _, w := range plan.walks {
		n, err := c.walk(g, w.base, rv)
		if err != nil {
			if w.optional {
				c.logger.Debug("optional table walk failed",
					zap.String("device", dev.ID),
					zap.String("oid", w.base),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		if n == 0 && !w.optional {
			return nil, &FetchError{
				Kind: KindMalformed,
				Op:   "walk " + w.base,
				Err:  fmt.Errorf("required table returned no rows"),
			}
		}
	}

	return rv, nil
}

// get issues one GET for a batch of scalar OIDs. Unimplemented objects are
// skipped, not errors.
func (c *Client) get(g *gosnmp.GoSNMP, oids []string, rv RawValues) error {
	if len(oids) == 0 {
		return nil
	}
	result, err := g.Get(oids)
	if err != nil {
		return classifyErr("get", err)
	}
	for _, pdu := range result.Variables {
		v, ok := pduValue(pdu)
		if !ok {
			continue
		}
		rv[normalizeOID(pdu.Name)] = v
	}
	return nil
}

// walk bulk-walks one table subtree into rv and reports the row count.
func (c *Client) walk(g *gosnmp.GoSNMP, base string, rv RawValues) (int, error) {
	n := 0
	err := g.BulkWalk(base, func(pdu gosnmp.SnmpPDU) error {
		v, ok := pduValue(pdu)
		if !ok {
			return nil
		}
		rv[normalizeOID(pdu.Name)] = v
		n++
		return nil
	})
	if err != nil {
		return n, classifyErr("walk "+base, err)
	}
	return n, nil
}

// SetAlias writes ifAlias for one interface.
func (c *Client) SetAlias(ctx context.Context, dev *models.Device, ifIndex int, alias string) error {
	oid := fmt.Sprintf("%s.%d", OIDIfAlias, ifIndex)
	return c.set(ctx, dev, gosnmp.SnmpPDU{
		Name:  oid,
		Type:  gosnmp.OctetString,
		Value: alias,
	})
}

// SetAdminState writes ifAdminStatus for one interface (up=true -> 1,
// up=false -> 2).
func (c *Client) SetAdminState(ctx context.Context, dev *models.Device, ifIndex int, up bool) error {
	status := models.StatusDown
	if up {
		status = models.StatusUp
	}
	oid := fmt.Sprintf("%s.%d", OIDIfAdminStatus, ifIndex)
	return c.set(ctx, dev, gosnmp.SnmpPDU{
		Name:  oid,
		Type:  gosnmp.Integer,
		Value: status,
	})
}

// set issues one SET and maps agent-side denial to KindWriteDenied.
func (c *Client) set(ctx context.Context, dev *models.Device, pdu gosnmp.SnmpPDU) error {
	if err := c.writeLimit.Wait(ctx); err != nil {
		return classifyErr("set "+pdu.Name, err)
	}

	g, err := c.newGoSNMP(ctx, dev)
	if err != nil {
		return &FetchError{Kind: KindMalformed, Op: "configure", Err: err}
	}
	if err := g.Connect(); err != nil {
		return classifyErr("connect", err)
	}
	defer func() { _ = g.Conn.Close() }()

	result, err := g.Set([]gosnmp.SnmpPDU{pdu})
	if err != nil {
		return classifyErr("set "+pdu.Name, err)
	}
	if result.Error != gosnmp.NoError {
		return &FetchError{
			Kind: KindWriteDenied,
			Op:   "set " + pdu.Name,
			Err:  fmt.Errorf("agent returned %v at index %d", result.Error, result.ErrorIndex),
		}
	}
	return nil
}

// normalizeProto folds protocol spellings like "sha-256" onto "SHA256".
func normalizeProto(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "")
}

// mapAuthProtocol converts an auth protocol string to the gosnmp constant.
func mapAuthProtocol(s string) gosnmp.SnmpV3AuthProtocol {
	switch normalizeProto(s) {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.SHA
	}
}

// mapPrivProtocol converts a privacy protocol string to the gosnmp constant.
func mapPrivProtocol(s string) gosnmp.SnmpV3PrivProtocol {
	switch normalizeProto(s) {
	case "DES":
		return gosnmp.DES
	case "AES", "AES128":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	case "AES192C":
		return gosnmp.AES192C
	case "AES256C":
		return gosnmp.AES256C
	default:
		return gosnmp.AES
	}
}
