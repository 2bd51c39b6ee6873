// Package nmap runs nmap against single hosts and turns its XML report into
// service records for the correlation pipeline.
package nmap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/vulntor/exposure/pkg/normalize"
	"github.com/vulntor/exposure/pkg/vuln"
)

// ErrNoXML is returned when the scanner output holds no XML report.
var ErrNoXML = errors.New("no XML output from nmap")

type run struct {
	XMLName xml.Name  `xml:"nmaprun"`
	Hosts   []xmlHost `xml:"host"`
}

type xmlHost struct {
	Status struct {
		State string `xml:"state,attr"`
	} `xml:"status"`
	Addresses []struct {
		Addr     string `xml:"addr,attr"`
		AddrType string `xml:"addrtype,attr"`
	} `xml:"address"`
	Hostnames []struct {
		Name string `xml:"name,attr"`
	} `xml:"hostnames>hostname"`
	Ports []xmlPort `xml:"ports>port"`
	OS    []struct {
		Name     string `xml:"name,attr"`
		Accuracy int    `xml:"accuracy,attr"`
	} `xml:"os>osmatch"`
}

type xmlPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   int    `xml:"portid,attr"`
	State    struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service *struct {
		Name      string `xml:"name,attr"`
		Product   string `xml:"product,attr"`
		Version   string `xml:"version,attr"`
		ExtraInfo string `xml:"extrainfo,attr"`
	} `xml:"service"`
}

// Port is one scanned port of a host.
type Port struct {
	Number    int
	Protocol  string
	State     string
	Service   string
	Product   string
	Version   string
	ExtraInfo string
}

// HostResult is one host of an nmap report.
type HostResult struct {
	Address   string
	State     string
	Hostnames []string
	OS        string
	Ports     []Port
}

// ParseXML decodes an nmap XML report (as produced by -oX).
func ParseXML(data []byte) ([]HostResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoXML
	}
	var r run
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoXML, err)
	}

	out := make([]HostResult, 0, len(r.Hosts))
	for _, h := range r.Hosts {
		hr := HostResult{State: h.Status.State, Hostnames: []string{}}
		for _, a := range h.Addresses {
			if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
				hr.Address = a.Addr
				break
			}
		}
		for _, hn := range h.Hostnames {
			if hn.Name != "" {
				hr.Hostnames = append(hr.Hostnames, hn.Name)
			}
		}
		best := -1
		for _, m := range h.OS {
			if m.Accuracy > best {
				best = m.Accuracy
				hr.OS = m.Name
			}
		}
		for _, p := range h.Ports {
			port := Port{Number: p.PortID, Protocol: p.Protocol, State: p.State.State}
			if p.Service != nil {
				port.Service = p.Service.Name
				port.Product = p.Service.Product
				port.Version = p.Service.Version
				port.ExtraInfo = p.Service.ExtraInfo
			}
			hr.Ports = append(hr.Ports, port)
		}
		out = append(out, hr)
	}
	return out, nil
}

// Records converts the ports of h into pipeline input. Product names are
// canonicalised so that lookups match those made for other sources.
func (h HostResult) Records() []vuln.ServiceRecord {
	out := make([]vuln.ServiceRecord, 0, len(h.Ports))
	for _, p := range h.Ports {
		if p.State != "" && p.State != "open" {
			continue
		}
		out = append(out, vuln.ServiceRecord{
			Port:      p.Number,
			Transport: p.Protocol,
			Service:   p.Service,
			Product:   normalize.Product(p.Product),
			Version:   strings.TrimSpace(p.Version),
			Banner:    strings.TrimSpace(strings.Join([]string{p.Product, p.Version, p.ExtraInfo}, " ")),
		})
	}
	return out
}
