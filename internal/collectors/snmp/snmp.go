package snmp

// SNMP reachability probe for OLTs. The probe decorates any collectors.Source
// and only rewrites OLT status from a sysDescr GET; it never walks ONU tables.

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"pontopology/internal/inventory"
)

const oidSysDescr = ".1.3.6.1.2.1.1.1.0"

type AuthV3 struct {
	User      string
	AuthProto string // MD5/SHA/SHA256...
	AuthPass  string
	PrivProto string // DES/AES...
	PrivPass  string
}

type Credentials struct {
	Version   string // "2c" or "3"
	Community string
	V3        *AuthV3
}

type Target struct {
	Address     string // IP or FQDN, optional :port
	Credentials Credentials
}

// Querier reads the system description of a device.
type Querier interface {
	SysDescr(ctx context.Context, t Target) (string, error)
}

var ErrNoResponse = errors.New("snmp: empty response")

// GoSNMPQuerier issues real SNMP GETs with gosnmp.
type GoSNMPQuerier struct {
	Timeout time.Duration
	Retries int
	// Port is used for targets that do not name one.
	Port int
}

func NewGoSNMP() *GoSNMPQuerier {
	return &GoSNMPQuerier{
		Timeout: 3 * time.Second,
		Retries: 1,
		Port:    161,
	}
}

func (q *GoSNMPQuerier) SysDescr(ctx context.Context, t Target) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sn := q.session(t)
	sn.Context = ctx
	if err := sn.Connect(); err != nil {
		return "", err
	}
	defer sn.Conn.Close()
	return getString(sn, oidSysDescr)
}

// session builds an unconnected gosnmp session for the target.
func (q *GoSNMPQuerier) session(t Target) *gosnmp.GoSNMP {
	def := q.Port
	if def <= 0 {
		def = 161
	}
	host, port := splitHostPort(t.Address, def)
	cfg := &gosnmp.GoSNMP{
		Target:  host,
		Port:    uint16(port),
		Timeout: q.Timeout,
		Retries: q.Retries,
		MaxOids: gosnmp.MaxOids,
	}

	cred := t.Credentials
	switch strings.ToLower(strings.TrimPrefix(cred.Version, "v")) {
	case "3":
		cfg.Version = gosnmp.Version3
		cfg.SecurityModel = gosnmp.UserSecurityModel
		u := &gosnmp.UsmSecurityParameters{}
		flags := gosnmp.NoAuthNoPriv
		if cred.V3 != nil {
			u.UserName = cred.V3.User
			if cred.V3.AuthPass != "" {
				u.AuthenticationPassphrase = cred.V3.AuthPass
				u.AuthenticationProtocol = authProtocol(cred.V3.AuthProto)
				flags = gosnmp.AuthNoPriv
			}
			if cred.V3.PrivPass != "" {
				u.PrivacyPassphrase = cred.V3.PrivPass
				u.PrivacyProtocol = privProtocol(cred.V3.PrivProto)
				flags = gosnmp.AuthPriv
			}
		}
		cfg.MsgFlags = flags
		cfg.SecurityParameters = u
	case "1":
		cfg.Version = gosnmp.Version1
		cfg.Community = firstNonEmpty(cred.Community, "public")
	default:
		cfg.Version = gosnmp.Version2c
		cfg.Community = firstNonEmpty(cred.Community, "public")
	}
	return cfg
}

func authProtocol(name string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(name) {
	case "MD5":
		return gosnmp.MD5
	case "SHA256":
		return gosnmp.SHA256
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.SHA
	}
}

func privProtocol(name string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(name) {
	case "DES":
		return gosnmp.DES
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.AES
	}
}

func getString(sn *gosnmp.GoSNMP, oid string) (string, error) {
	p, err := sn.Get([]string{oid})
	if err != nil {
		return "", err
	}
	if len(p.Variables) == 0 {
		return "", ErrNoResponse
	}
	v := p.Variables[0]
	switch v.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.Null:
		return "", ErrNoResponse
	}
	// Some devices return OctetString as []byte; make it printable.
	switch val := v.Value.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		return gosnmp.ToBigInt(val).String(), nil
	}
}

// TargetFor derives the probe target of an OLT, falling back to defaults for
// unset SNMP settings. ok is false when the OLT has no address.
func TargetFor(olt inventory.OltRecord, defaults Credentials) (Target, bool) {
	addr := strings.TrimSpace(olt.IPAddress)
	if addr == "" {
		return Target{}, false
	}
	if olt.SNMPPort > 0 {
		addr = net.JoinHostPort(addr, strconv.Itoa(olt.SNMPPort))
	}
	cred := defaults
	if olt.SNMPCommunity != "" {
		cred.Community = olt.SNMPCommunity
	}
	if olt.SNMPVersion != "" {
		cred.Version = olt.SNMPVersion
	}
	return Target{Address: addr, Credentials: cred}, true
}

func splitHostPort(addr string, def int) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, def
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p <= 0 || p > 65535 {
		return host, def
	}
	return host, p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
