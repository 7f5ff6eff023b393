package main

import (
	"context"
	"os"

	"github.com/go-gl/gl/all-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gpuinterop/glvk/app"
	"github.com/gpuinterop/glvk/compute"
	"github.com/gpuinterop/glvk/glext/gl46"
	"github.com/gpuinterop/glvk/interop"
	"github.com/vkngwrapper/core/v2"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_portability_subset"
	"golang.org/x/exp/slog"
)

const configPath = "config.toml"

const textureFormat = core1_0.FormatR8G8B8A8UnsignedNormalized

func fatal(logger *slog.Logger, msg string, err error) {
	logger.LogAttrs(context.Background(), slog.LevelError, msg,
		slog.Any("error", err),
	)
	os.Exit(1)
}

// createInstance builds a Vulkan instance carrying the external-object
// capability extensions, plus portability enumeration where present.
func createInstance(logger *slog.Logger, loader *core.VulkanLoader) core1_0.Instance {
	availableExtensions, _, err := loader.AvailableExtensions()
	if err != nil {
		fatal(logger, "failed to enumerate instance extensions", err)
	}

	instanceExtensionNames := interop.RequiredInstanceExtensions()
	for _, name := range instanceExtensionNames {
		_, ok := availableExtensions[name]
		if !ok {
			fatal(logger, "a required instance extension is not available: "+name, nil)
		}
	}

	var flags core1_0.InstanceCreateFlags
	_, ok := availableExtensions[khr_portability_enumeration.ExtensionName]
	if ok {
		instanceExtensionNames = append(instanceExtensionNames, khr_portability_enumeration.ExtensionName)
		flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	instance, _, err := loader.CreateInstance(nil, core1_0.InstanceCreateInfo{
		ApplicationName:       "glvk interop",
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            "glvk",
		EngineVersion:         common.CreateVersion(1, 0, 0),
		APIVersion:            common.Vulkan1_0,
		EnabledExtensionNames: instanceExtensionNames,
		Flags:                 flags,
	})
	if err != nil {
		fatal(logger, "failed to create a Vulkan instance", err)
	}

	return instance
}

// selectPhysicalDevice returns the first physical device with a
// graphics+compute queue family and every device extension the sharing
// protocol needs.
func selectPhysicalDevice(logger *slog.Logger, instance core1_0.Instance) (core1_0.PhysicalDevice, int) {
	gpus, _, err := instance.EnumeratePhysicalDevices()
	if err != nil {
		fatal(logger, "failed to enumerate physical devices", err)
	}

	required := interop.RequiredDeviceExtensions()

	for _, gpu := range gpus {
		queueFamily := -1
		for queueIndex, props := range gpu.QueueFamilyProperties() {
			if props.QueueFlags&(core1_0.QueueGraphics|core1_0.QueueCompute) == core1_0.QueueGraphics|core1_0.QueueCompute {
				queueFamily = queueIndex
				break
			}
		}
		if queueFamily < 0 {
			continue
		}

		deviceExtensions, _, err := gpu.EnumerateDeviceExtensionProperties()
		if err != nil {
			fatal(logger, "failed to enumerate device extensions", err)
		}

		missing := ""
		for _, name := range required {
			_, ok := deviceExtensions[name]
			if !ok {
				missing = name
				break
			}
		}
		if missing != "" {
			properties, err := gpu.Properties()
			if err == nil {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "skipping a device that cannot share memory",
					slog.String("device", properties.DriverName),
					slog.String("missing", missing),
				)
			}
			continue
		}

		return gpu, queueFamily
	}

	fatal(logger, "no physical device supports cross-API memory and semaphore sharing", nil)
	return nil, -1
}

func createDevice(logger *slog.Logger, physicalDevice core1_0.PhysicalDevice, queueFamily int) core1_0.Device {
	deviceExtensionNames := interop.RequiredDeviceExtensions()

	deviceExtensions, _, err := physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		fatal(logger, "failed to enumerate device extensions", err)
	}
	_, ok := deviceExtensions[khr_portability_subset.ExtensionName]
	if ok {
		deviceExtensionNames = append(deviceExtensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: queueFamily,
				QueuePriorities:  []float32{0.0},
			},
		},
		EnabledExtensionNames: deviceExtensionNames,
	})
	if err != nil {
		fatal(logger, "failed to create a Vulkan device", err)
	}

	return device
}

func main() {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		slog.Default().LogAttrs(context.Background(), slog.LevelError, "invalid config",
			slog.Any("error", err),
		)
		os.Exit(1)
	}

	level, _ := config.LogLevel()
	logger := slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))

	// GL first: the window provides the context everything GL-side needs
	window, err := app.CreateWindow(config.Window)
	if err != nil {
		fatal(logger, "failed to create the application window", err)
	}
	defer glfw.Terminate()

	err = gl.Init()
	if err != nil {
		fatal(logger, "failed to load OpenGL", err)
	}
	glAPI, err := gl46.New()
	if err != nil {
		fatal(logger, "this OpenGL driver cannot share memory with Vulkan", err)
	}

	// Vulkan side
	loader, err := core.CreateSystemLoader()
	if err != nil {
		fatal(logger, "failed to load Vulkan", err)
	}

	instance := createInstance(logger, loader)
	physicalDevice, queueFamily := selectPhysicalDevice(logger, instance)
	device := createDevice(logger, physicalDevice, queueFamily)
	queue := device.GetQueue(queueFamily, 0)

	allocator, err := interop.New(logger, instance, physicalDevice, device, glAPI, interop.CreateOptions{})
	if err != nil {
		fatal(logger, "this device cannot share memory with OpenGL", err)
	}

	shaderCode, err := os.ReadFile(config.Shader.ComputePath)
	if err != nil {
		fatal(logger, "failed to read the compute shader", err)
	}

	stage, err := compute.New(logger, allocator, queue, queueFamily, shaderCode, core1_0.Extent2D{
		Width:  config.Texture.Width,
		Height: config.Texture.Height,
	}, textureFormat)
	if err != nil {
		fatal(logger, "failed to create the compute stage", err)
	}

	application, err := app.New(logger, window, allocator, stage)
	if err != nil {
		stage.Destroy()
		fatal(logger, "failed to create the application", err)
	}

	runErr := application.Run()

	_, err = device.WaitIdle()
	if err != nil {
		logger.LogAttrs(context.Background(), slog.LevelWarn, "failed to idle the device at shutdown",
			slog.Any("error", err),
		)
	}

	application.Destroy()
	stage.Destroy()

	logger.LogAttrs(context.Background(), slog.LevelDebug, "allocator stats",
		slog.String("stats", allocator.BuildStatsString()),
	)
	allocator.Destroy()

	device.Destroy(nil)
	instance.Destroy(nil)

	if runErr != nil {
		fatal(logger, "frame loop failed", runErr)
	}
}
