// Package openstack reads the destination inventory snapshot used by the
// readiness checker from an OpenStack cloud.
package openstack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/quotasets"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/domains"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/layer3/routers"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/networks"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const quotaConcurrency = 4

type Config struct {
	AuthURL     string
	Username    string
	Password    string
	ProjectName string
	DomainName  string
	RegionName  string
}

type Loader struct {
	keystone *gophercloud.ServiceClient
	nova     *gophercloud.ServiceClient
	neutron  *gophercloud.ServiceClient
	glance   *gophercloud.ServiceClient
	log      *zap.SugaredLogger
}

func NewLoader(keystone, nova, neutron, glance *gophercloud.ServiceClient) *Loader {
	return &Loader{
		keystone: keystone,
		nova:     nova,
		neutron:  neutron,
		glance:   glance,
		log:      zap.S().Named("openstack_loader"),
	}
}

// Connect authenticates against keystone and resolves the service endpoints.
func Connect(ctx context.Context, cfg Config) (*Loader, error) {
	authOptions := gophercloud.AuthOptions{
		IdentityEndpoint: cfg.AuthURL,
		Username:         cfg.Username,
		DomainName:       cfg.DomainName,
		Password:         cfg.Password,
		AllowReauth:      true,
		Scope: &gophercloud.AuthScope{
			ProjectName: cfg.ProjectName,
			DomainName:  cfg.DomainName,
		},
	}
	provider, err := openstack.NewClient(authOptions.IdentityEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create openstack client: %w", err)
	}
	if err := openstack.Authenticate(ctx, provider, authOptions); err != nil {
		return nil, fmt.Errorf("failed to authenticate against openstack: %w", err)
	}

	eo := func(t string) gophercloud.EndpointOpts {
		return gophercloud.EndpointOpts{Region: cfg.RegionName, Type: t}
	}
	keystone, err := openstack.NewIdentityV3(provider, eo("identity"))
	if err != nil {
		return nil, err
	}
	nova, err := openstack.NewComputeV2(provider, eo("compute"))
	if err != nil {
		return nil, err
	}
	neutron, err := openstack.NewNetworkV2(provider, eo("network"))
	if err != nil {
		return nil, err
	}
	glance, err := openstack.NewImageV2(provider, eo("image"))
	if err != nil {
		return nil, err
	}
	return NewLoader(keystone, nova, neutron, glance), nil
}

// Load reads the destination inventory. Quota usage is fetched only for the
// wanted projects that exist.
func (l *Loader) Load(ctx context.Context, wanted []readiness.Project) (readiness.Snapshot, error) {
	var snap readiness.Snapshot

	domainList, err := l.domains(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to list domains: %w", err)
	}
	domainNames := make(map[string]string, len(domainList))
	for _, d := range domainList {
		domainNames[d.ID] = d.Name
		snap.Domains = append(snap.Domains, d.Name)
	}

	projectList, err := l.projects(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to list projects: %w", err)
	}
	projectIDs := make(map[string]string, len(projectList))
	for _, p := range projectList {
		domain := domainNames[p.DomainID]
		snap.Projects = append(snap.Projects, readiness.Project{Name: p.Name, Domain: domain})
		projectIDs[readiness.QuotaKey(domain, p.Name)] = p.ID
	}

	if snap.Flavors, err = l.flavors(ctx); err != nil {
		return snap, fmt.Errorf("failed to list flavors: %w", err)
	}
	if snap.Images, err = l.images(ctx); err != nil {
		return snap, fmt.Errorf("failed to list images: %w", err)
	}

	netList, err := l.networks(ctx)
	if err != nil {
		return snap, fmt.Errorf("failed to list networks: %w", err)
	}
	for _, n := range netList {
		snap.Networks = append(snap.Networks, n.Name)
		if n.External {
			snap.FloatingIPPools = append(snap.FloatingIPPools, n.Name)
		}
	}

	if snap.Routers, err = l.routers(ctx); err != nil {
		return snap, fmt.Errorf("failed to list routers: %w", err)
	}
	if snap.SecurityGroups, err = l.securityGroups(ctx); err != nil {
		return snap, fmt.Errorf("failed to list security groups: %w", err)
	}

	if snap.Quotas, err = l.quotas(ctx, wanted, projectIDs); err != nil {
		return snap, fmt.Errorf("failed to read quotas: %w", err)
	}

	sort.Strings(snap.Domains)
	sort.Strings(snap.Networks)
	sort.Strings(snap.FloatingIPPools)
	sort.Strings(snap.Routers)
	sort.Strings(snap.SecurityGroups)

	l.log.Infow("loaded destination snapshot",
		"domains", len(snap.Domains), "projects", len(snap.Projects), "flavors", len(snap.Flavors),
		"images", len(snap.Images), "networks", len(snap.Networks), "quotas", len(snap.Quotas))
	return snap, nil
}

func (l *Loader) domains(ctx context.Context) ([]domains.Domain, error) {
	allPages, err := domains.List(l.keystone, nil).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var data = &struct {
		Domains []domains.Domain `json:"domains"`
	}{}
	if err := allPages.(domains.DomainPage).ExtractInto(data); err != nil {
		return nil, err
	}
	return data.Domains, nil
}

func (l *Loader) projects(ctx context.Context) ([]projects.Project, error) {
	allPages, err := projects.List(l.keystone, nil).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var data = &struct {
		Projects []projects.Project `json:"projects"`
	}{}
	if err := allPages.(projects.ProjectPage).ExtractInto(data); err != nil {
		return nil, err
	}
	return data.Projects, nil
}

type flavor struct {
	Name  string `json:"name"`
	VCPUs int    `json:"vcpus"`
	RAM   int    `json:"ram"`
	Disk  int    `json:"disk"`
}

func (l *Loader) flavors(ctx context.Context) ([]readiness.Flavor, error) {
	lo := flavors.ListOpts{AccessType: flavors.AllAccess}
	pages, err := flavors.ListDetail(l.nova, lo).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var data = &struct {
		Flavors []flavor `json:"flavors"`
	}{}
	if err := pages.(flavors.FlavorPage).ExtractInto(data); err != nil {
		return nil, err
	}
	out := make([]readiness.Flavor, 0, len(data.Flavors))
	for _, f := range data.Flavors {
		out = append(out, readiness.Flavor{Name: f.Name, VCPU: f.VCPUs, RAMMB: f.RAM, DiskGB: f.Disk})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type image struct {
	Name     string `json:"name"`
	OSDistro string `json:"os_distro"`
}

func (l *Loader) images(ctx context.Context) ([]readiness.Image, error) {
	ilo := images.ListOpts{Status: images.ImageStatusActive}
	pages, err := images.List(l.glance, ilo).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var data = &struct {
		Images []image `json:"images"`
	}{}
	if err := pages.(images.ImagePage).ExtractInto(data); err != nil {
		return nil, err
	}
	out := make([]readiness.Image, 0, len(data.Images))
	for _, img := range data.Images {
		out = append(out, readiness.Image{Name: img.Name, OSFamily: strings.ToLower(img.OSDistro)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type network struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	External bool   `json:"router:external"`
}

func (l *Loader) networks(ctx context.Context) ([]network, error) {
	pages, err := networks.List(l.neutron, networks.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	var data = &struct {
		Networks []network `json:"networks"`
	}{}
	if err := pages.(networks.NetworkPage).ExtractInto(data); err != nil {
		return nil, err
	}
	return data.Networks, nil
}

func (l *Loader) routers(ctx context.Context) ([]string, error) {
	pages, err := routers.List(l.neutron, routers.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	all, err := routers.ExtractRouters(pages)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, r := range all {
		out = append(out, r.Name)
	}
	return out, nil
}

func (l *Loader) securityGroups(ctx context.Context) ([]string, error) {
	pages, err := groups.List(l.neutron, groups.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, err
	}
	all, err := groups.ExtractGroups(pages)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, g := range all {
		if !seen[g.Name] {
			seen[g.Name] = true
			out = append(out, g.Name)
		}
	}
	return out, nil
}

func (l *Loader) quotas(ctx context.Context, wanted []readiness.Project, ids map[string]string) (map[string]readiness.Quota, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]readiness.Quota)
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(quotaConcurrency)
	for _, p := range wanted {
		key := readiness.QuotaKey(p.Domain, p.Name)
		id, ok := ids[key]
		if !ok {
			continue
		}
		g.Go(func() error {
			q, err := quotasets.GetDetail(ctx, l.nova, id).Extract()
			if err != nil {
				return fmt.Errorf("project %s: %w", key, err)
			}
			mu.Lock()
			defer mu.Unlock()
			out[key] = readiness.Quota{
				CoresLimit:     q.Cores.Limit,
				CoresUsed:      q.Cores.InUse + q.Cores.Reserved,
				RAMMBLimit:     q.RAM.Limit,
				RAMMBUsed:      q.RAM.InUse + q.RAM.Reserved,
				InstancesLimit: q.Instances.Limit,
				InstancesUsed:  q.Instances.InUse + q.Instances.Reserved,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
