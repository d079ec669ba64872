// Copyright 2025 MindOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zerotouch

import (
	"sort"

	corev1 "k8s.io/api/core/v1"

	"github.com/Huzefaaa2/MindOps/pkg/manifest"
)

// Discover pairs Services with the workloads their selectors match and
// derives the instrumentation facts (language, ports) per pair. Services
// without a matching workload and workloads without a Service both surface
// as discovered services.
func Discover(set manifest.Set) []DiscoveredService {
	workloads := workloadsFrom(set)
	services := servicesFrom(set)

	var discovered []DiscoveredService
	matched := map[string]bool{}

	for _, svc := range services {
		hits := matchWorkloads(svc, workloads)
		for _, wl := range hits {
			matched[wl.Namespace+"/"+wl.Name] = true
			discovered = append(discovered, makeDiscovered(&svc, wl))
		}
		if len(hits) == 0 {
			discovered = append(discovered, makeDiscovered(&svc, nil))
		}
	}
	for i := range workloads {
		wl := &workloads[i]
		if matched[wl.Namespace+"/"+wl.Name] {
			continue
		}
		discovered = append(discovered, makeDiscovered(nil, wl))
	}
	return discovered
}

func workloadsFrom(set manifest.Set) []Workload {
	var workloads []Workload
	for _, d := range set.Deployments {
		workloads = append(workloads, Workload{
			Name: d.Name, Namespace: d.Namespace, Kind: "Deployment",
			Labels: d.Labels, Annotations: d.Annotations,
			Containers: d.Spec.Template.Spec.Containers,
		})
	}
	for _, s := range set.StatefulSets {
		workloads = append(workloads, Workload{
			Name: s.Name, Namespace: s.Namespace, Kind: "StatefulSet",
			Labels: s.Labels, Annotations: s.Annotations,
			Containers: s.Spec.Template.Spec.Containers,
		})
	}
	for _, d := range set.DaemonSets {
		workloads = append(workloads, Workload{
			Name: d.Name, Namespace: d.Namespace, Kind: "DaemonSet",
			Labels: d.Labels, Annotations: d.Annotations,
			Containers: d.Spec.Template.Spec.Containers,
		})
	}
	return workloads
}

func servicesFrom(set manifest.Set) []Service {
	var services []Service
	for _, s := range set.Services {
		var ports []int32
		for _, p := range s.Spec.Ports {
			if p.Port != 0 {
				ports = append(ports, p.Port)
			}
		}
		services = append(services, Service{
			Name: s.Name, Namespace: s.Namespace,
			Selector: s.Spec.Selector, Ports: ports,
		})
	}
	return services
}

func matchWorkloads(svc Service, workloads []Workload) []*Workload {
	if len(svc.Selector) == 0 {
		return nil
	}
	var hits []*Workload
	for i := range workloads {
		wl := &workloads[i]
		if wl.Namespace != svc.Namespace {
			continue
		}
		if selectorMatches(svc.Selector, wl.Labels) {
			hits = append(hits, wl)
		}
	}
	return hits
}

func selectorMatches(selector, labels map[string]string) bool {
	for key, value := range selector {
		if labels[key] != value {
			return false
		}
	}
	return true
}

func makeDiscovered(svc *Service, wl *Workload) DiscoveredService {
	d := DiscoveredService{Name: "unknown", Namespace: "default", Language: "unknown"}
	if wl != nil {
		d.Name, d.Namespace = wl.Name, wl.Namespace
		d.Workload = wl
		d.Labels = wl.Labels
		if len(wl.Containers) > 0 {
			d.Language = DetectLanguage(wl.Containers[0].Image, wl.Labels)
		}
	}
	if svc != nil {
		d.Name, d.Namespace = svc.Name, svc.Namespace
		d.Service = svc
	}
	d.Ports = collectPorts(svc, wl)
	return d
}

func collectPorts(svc *Service, wl *Workload) []int32 {
	seen := map[int32]bool{}
	var ports []int32
	add := func(p int32) {
		if p != 0 && !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	if wl != nil {
		for _, c := range wl.Containers {
			for _, p := range containerPorts(c) {
				add(p)
			}
		}
	}
	if svc != nil {
		for _, p := range svc.Ports {
			add(p)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

func containerPorts(c corev1.Container) []int32 {
	var ports []int32
	for _, p := range c.Ports {
		ports = append(ports, p.ContainerPort)
	}
	return ports
}
