package model

// PodStatus is the desired status reported by the pod-control API.
type PodStatus string

const (
	PodStatusRunning    PodStatus = "RUNNING"
	PodStatusExited     PodStatus = "EXITED"
	PodStatusTerminated PodStatus = "TERMINATED"
)

// Pod is one remote compute instance as last reported by the pod-control API.
// The API owns every field; botpod never writes a Pod back.
type Pod struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	DesiredStatus     PodStatus         `json:"desiredStatus"`
	LastStartedAt     string            `json:"lastStartedAt,omitempty"`
	LastStatusChange  string            `json:"lastStatusChange,omitempty"`
	PublicIP          string            `json:"publicIp,omitempty"`
	Ports             []string          `json:"ports,omitempty"`
	CostPerHr         float64           `json:"costPerHr,omitempty"`
	GPUCount          int               `json:"gpuCount,omitempty"`
	ImageName         string            `json:"imageName,omitempty"`
	MachineID         string            `json:"machineId,omitempty"`
	Machine           map[string]any    `json:"machine,omitempty"`
	MemoryInGb        float64           `json:"memoryInGb,omitempty"`
	TemplateID        string            `json:"templateId,omitempty"`
	VCPUCount         float64           `json:"vcpuCount,omitempty"`
	VolumeInGb        float64           `json:"volumeInGb,omitempty"`
	ContainerDiskInGb float64           `json:"containerDiskInGb,omitempty"`
	CreatedAt         string            `json:"createdAt,omitempty"`
	VolumeMountPath   string            `json:"volumeMountPath,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
}

// CreatePodRequest is the body of a create call to the pod-control API.
type CreatePodRequest struct {
	Name              string `json:"name"`
	TemplateID        string `json:"templateId"`
	ContainerDiskInGb *int   `json:"containerDiskInGb,omitempty"`
	GPUCount          *int   `json:"gpuCount,omitempty"`
	GPUTypeID         string `json:"gpuTypeId,omitempty"`
}

// Ack acknowledges a start or stop call.
type Ack struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Ready reports whether the pod can be used: RUNNING and started at least once.
// It is the only place readiness is decided. A start timestamp left over from an
// earlier run does not count once the pod is no longer RUNNING.
func Ready(p Pod) bool {
	return p.DesiredStatus == PodStatusRunning && p.LastStartedAt != ""
}

// IsStopped reports whether status means the pod is not running.
// A missing status is treated as terminated.
func IsStopped(status PodStatus) bool {
	switch status {
	case PodStatusExited, PodStatusTerminated, "":
		return true
	}
	return false
}
