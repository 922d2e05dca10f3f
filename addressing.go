package closbench

// file addressing.go holds the pluggable per-edge attribute assignment the
// builder invokes while connecting two adjacent-tier nodes. Each control
// protocol brings its own variant: BGP hands out ASNs and point-to-point
// IPv4 subnets, MTP only tags topology placement (plus compute subnets),
// and the plain variant records adjacency alone.

import (
	"net"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/pkg/errors"
)

// Protocol identifiers used in topology names and persistence keys.
const (
	ProtocolPlain = "plain"
	ProtocolBGP   = "bgp"
	ProtocolMTP   = "mtp"
)

// An AddressingStrategy assigns protocol attributes to the two endpoints of
// a link as the builder creates it. Assign must never reuse an
// already-allocated subnet or AS number within one build; both endpoints are
// guaranteed to exist in the topology when it is called.
type AddressingStrategy interface {
	Protocol() string
	Assign(topo *Topology, northNode, southNode string, northTier, southTier int) error
}

// sharedSubnetStrategy is implemented by strategies that can collapse the
// compute hosts under a leaf into one subnet. The builder folds the answer
// into the topology name so shared and per-link builds stay distinct.
type sharedSubnetStrategy interface {
	sharedComputeSubnet() bool
}

// PlainAddressing records adjacency only; it exists to view the shape of a
// folded-Clos topology without any protocol configuration.
type PlainAddressing struct{}

func (PlainAddressing) Protocol() string { return ProtocolPlain }

func (PlainAddressing) Assign(*Topology, string, string, int, int) error { return nil }

// BGP addressing constants: the private ASN range start, and the two
// supernets that core (spine-spine, spine-leaf) and edge (leaf-compute)
// point-to-point /24 subnets are carved from.
const (
	privateASNRangeStart = 64512

	leafSpineSupernet   = "172.16.0.0/12"
	computeSupernet     = "192.168.0.0/16"
	leafSpineSubnetBits = 12
	computeSubnetBits   = 8
)

// key under which a leaf stores its address when all of its compute hosts
// share one subnet
const sharedComputeKey = "compute"

// A subnetPool carves consecutive non-overlapping subnets out of one
// supernet. Allocation order is deterministic, so rebuilding a topology
// reproduces the same addressing.
type subnetPool struct {
	supernet *net.IPNet
	newBits  int
	next     int
}

func createSubnetPool(supernet string, newBits int) *subnetPool {
	_, ipnet, err := net.ParseCIDR(supernet)
	if err != nil {
		// the supernets are package constants; a parse failure is a
		// programming error
		panic(err)
	}

	return &subnetPool{supernet: ipnet, newBits: newBits}
}

// Next returns the next unused subnet in the pool.
func (p *subnetPool) Next() (*net.IPNet, error) {
	subnet, err := cidr.Subnet(p.supernet, p.newBits, p.next)
	if err != nil {
		return nil, errors.Wrapf(err, "supernet %s exhausted after %d subnets", p.supernet, p.next)
	}
	p.next++

	return subnet, nil
}

// host returns the n-th usable host address of a subnet as a string.
func host(subnet *net.IPNet, n int) (string, error) {
	addr, err := cidr.Host(subnet, n)
	if err != nil {
		return "", errors.Wrapf(err, "no host %d in subnet %s", n, subnet)
	}

	return addr.String(), nil
}

// lastHost returns the highest usable host address of a subnet, reserved
// for the leaf side of compute subnets.
func lastHost(subnet *net.IPNet) (string, error) {
	count := int(cidr.AddressCount(subnet))
	return host(subnet, count-2)
}

// sharedSubnet tracks a leaf's single compute subnet and the next host
// address to hand to a compute node on it.
type sharedSubnet struct {
	subnet   *net.IPNet
	nextHost int
}

// BGPAddressing assigns one ASN per leaf and one shared ASN per spine or
// top-tier pod (first-seen-wins, cached by pod prefix), and allocates
// non-overlapping IPv4 point-to-point subnets: core links from one
// supernet, and per-leaf edge subnets from a second. When
// SingleComputeSubnet is set, all compute hosts under one leaf share a
// single subnet instead of one subnet per link.
type BGPAddressing struct {
	SingleComputeSubnet bool

	asnByPrefix map[string]uint32
	nextASN     uint32

	core *subnetPool
	edge *subnetPool

	leafComputeSubnets map[string]*sharedSubnet
}

// CreateBGPAddressing is an initialization constructor for the BGP strategy.
func CreateBGPAddressing(singleComputeSubnet bool) *BGPAddressing {
	ba := new(BGPAddressing)
	ba.SingleComputeSubnet = singleComputeSubnet
	ba.asnByPrefix = make(map[string]uint32)
	ba.nextASN = privateASNRangeStart
	ba.core = createSubnetPool(leafSpineSupernet, leafSpineSubnetBits)
	ba.edge = createSubnetPool(computeSupernet, computeSubnetBits)
	ba.leafComputeSubnets = make(map[string]*sharedSubnet)

	return ba
}

func (ba *BGPAddressing) Protocol() string { return ProtocolBGP }

func (ba *BGPAddressing) sharedComputeSubnet() bool { return ba.SingleComputeSubnet }

// Assign configures the ASNs of both endpoints and the IPv4 addressing of
// the link between them.
func (ba *BGPAddressing) Assign(topo *Topology, northNode, southNode string, northTier, southTier int) error {
	ba.assignASN(topo.Node(northNode))
	ba.assignASN(topo.Node(southNode))

	if southTier <= ComputeTier {
		return ba.addressEdgeNodes(topo, northNode, southNode)
	}

	return ba.addressCoreNodes(topo, northNode, southNode)
}

// assignASN gives the node an autonomous system number if its role calls
// for one. Every leaf gets its own ASN; spines and ToF nodes in a pod share
// one, cached under the pod prefix the first time it is seen.
func (ba *BGPAddressing) assignASN(node *Node) {
	if node.ASN != 0 {
		return
	}

	title := node.Name[:1]
	var asnPrefix string

	switch title {
	case LeafName:
		asnPrefix = node.Name
	case TofName, SpineName:
		// the pod prefix is the node name minus its number within the pod
		asnPrefix = node.Name[:strings.LastIndex(node.Name, "_")+1]
	default:
		// compute nodes do not participate in BGP
		return
	}

	asn, present := ba.asnByPrefix[asnPrefix]
	if !present {
		asn = ba.nextASN
		ba.asnByPrefix[asnPrefix] = asn
		ba.nextASN++
	}

	node.ASN = asn
}

// addressCoreNodes gives the two endpoints of a core (spine-spine or
// spine-leaf) link the first two host addresses of a fresh subnet.
func (ba *BGPAddressing) addressCoreNodes(topo *Topology, northNode, southNode string) error {
	subnet, err := ba.core.Next()
	if err != nil {
		return err
	}

	northAddr, err := host(subnet, 1)
	if err != nil {
		return err
	}
	southAddr, err := host(subnet, 2)
	if err != nil {
		return err
	}

	setAddr(topo.Node(northNode), southNode, northAddr)
	setAddr(topo.Node(southNode), northNode, southAddr)

	return nil
}

// addressEdgeNodes provides IPv4 addressing on edge (leaf-compute) links.
// The leaf takes the highest host address and announces the subnet; compute
// nodes take the low host addresses in order.
func (ba *BGPAddressing) addressEdgeNodes(topo *Topology, northNode, southNode string) error {
	leaf := topo.Node(northNode)

	shared, present := ba.leafComputeSubnets[northNode]
	if !present {
		subnet, err := ba.edge.Next()
		if err != nil {
			return err
		}

		leafAddr, err := lastHost(subnet)
		if err != nil {
			return err
		}

		// the subnet itself is what the leaf announces northward
		leaf.Advertise = append(leaf.Advertise, subnet.String())

		shared = &sharedSubnet{subnet: subnet, nextHost: 1}
		if ba.SingleComputeSubnet {
			ba.leafComputeSubnets[northNode] = shared
			setAddr(leaf, sharedComputeKey, leafAddr)
		} else {
			setAddr(leaf, southNode, leafAddr)
		}
	}

	computeAddr, err := host(shared.subnet, shared.nextHost)
	if err != nil {
		return err
	}
	shared.nextHost++

	setAddr(topo.Node(southNode), northNode, computeAddr)

	return nil
}

// placeholder address MTP nodes record for core links, since the meshed
// tree protocol does not use IP addressing for convergence
const mtpCoreAddr = "MTP"

// MTPAddressing records topology placement only: the tier is already on the
// node, so the strategy tags top-tier membership and assigns compute-facing
// edge subnets (the hosts still need addresses even though the switching
// fabric does not).
type MTPAddressing struct {
	SingleComputeSubnet bool

	edge               *subnetPool
	leafComputeSubnets map[string]*sharedSubnet
}

// CreateMTPAddressing is an initialization constructor for the MTP strategy.
func CreateMTPAddressing(singleComputeSubnet bool) *MTPAddressing {
	ma := new(MTPAddressing)
	ma.SingleComputeSubnet = singleComputeSubnet
	ma.edge = createSubnetPool(computeSupernet, computeSubnetBits)
	ma.leafComputeSubnets = make(map[string]*sharedSubnet)

	return ma
}

func (ma *MTPAddressing) Protocol() string { return ProtocolMTP }

func (ma *MTPAddressing) sharedComputeSubnet() bool { return ma.SingleComputeSubnet }

func (ma *MTPAddressing) Assign(topo *Topology, northNode, southNode string, northTier, southTier int) error {
	north := topo.Node(northNode)
	south := topo.Node(southNode)
	north.TopTier = northTier == topo.T
	south.TopTier = false

	if southTier != ComputeTier {
		setAddr(north, southNode, mtpCoreAddr)
		setAddr(south, northNode, mtpCoreAddr)

		return nil
	}

	shared, present := ma.leafComputeSubnets[northNode]
	if !present {
		subnet, err := ma.edge.Next()
		if err != nil {
			return err
		}

		leafAddr, err := lastHost(subnet)
		if err != nil {
			return err
		}

		shared = &sharedSubnet{subnet: subnet, nextHost: 1}
		if ma.SingleComputeSubnet {
			ma.leafComputeSubnets[northNode] = shared
			setAddr(north, sharedComputeKey, leafAddr)
		} else {
			setAddr(north, southNode, leafAddr)
		}
	}

	computeAddr, err := host(shared.subnet, shared.nextHost)
	if err != nil {
		return err
	}
	shared.nextHost++

	setAddr(south, northNode, computeAddr)

	return nil
}

func setAddr(node *Node, neighbor, addr string) {
	if node.Addr == nil {
		node.Addr = make(map[string]string)
	}
	node.Addr[neighbor] = addr
}
