package vulkan_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/transient/vulkan"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	coremocks "github.com/vkngwrapper/core/v2/mocks"
)

func TestWrapDeviceAllocateMemory(t *testing.T) {
	testCases := map[string]struct {
		DeviceMask   uint32
		AllocateInfo core1_0.MemoryAllocateInfo
	}{
		"SingleDevice": {
			DeviceMask: 0,
			AllocateInfo: core1_0.MemoryAllocateInfo{
				AllocationSize:  1 << 20,
				MemoryTypeIndex: testMemoryType,
			},
		},
		"DeviceGroup": {
			DeviceMask: 0b10,
			AllocateInfo: core1_0.MemoryAllocateInfo{
				AllocationSize:  1 << 20,
				MemoryTypeIndex: testMemoryType,
				NextOptions: common.NextOptions{
					Next: core1_1.MemoryAllocateFlagsInfo{
						Flags:      core1_1.MemoryAllocateDeviceMask,
						DeviceMask: 0b10,
					},
				},
			},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			device := coremocks.NewMockDevice(ctrl)
			memory := coremocks.EasyMockDeviceMemory(ctrl)

			device.EXPECT().AllocateMemory(gomock.Nil(), testCase.AllocateInfo).Return(memory, core1_0.VKSuccess, nil)
			memory.EXPECT().Free(gomock.Nil())

			wrapped, err := vulkan.WrapDevice(device, nil).AllocateMemory(1<<20, testMemoryType, testCase.DeviceMask)
			require.NoError(t, err)
			require.Equal(t, memory, wrapped.VulkanDeviceMemory())

			wrapped.Free()
		})
	}
}

func TestWrapDeviceAllocateMemoryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := coremocks.NewMockDevice(ctrl)

	device.EXPECT().AllocateMemory(gomock.Nil(), gomock.Any()).
		Return(nil, core1_0.VKErrorOutOfDeviceMemory, errors.New("out of device memory"))

	memory, err := vulkan.WrapDevice(device, nil).AllocateMemory(1<<20, testMemoryType, 0)
	require.Error(t, err)
	require.Nil(t, memory)
}

func TestWrapDeviceBuffer(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := coremocks.NewMockDevice(ctrl)
	memory := coremocks.EasyMockDeviceMemory(ctrl)
	buffer := coremocks.EasyMockBuffer(ctrl)

	createInfo := core1_0.BufferCreateInfo{
		Size:  4096,
		Usage: core1_0.BufferUsageStorageBuffer,
	}
	device.EXPECT().AllocateMemory(gomock.Nil(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)
	device.EXPECT().CreateBuffer(gomock.Nil(), createInfo).Return(buffer, core1_0.VKSuccess, nil)
	buffer.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b0110})
	buffer.EXPECT().BindBufferMemory(memory, 8192).Return(core1_0.VKSuccess, nil)
	buffer.EXPECT().Destroy(gomock.Nil())

	wrappedDevice := vulkan.WrapDevice(device, nil)
	wrappedMemory, err := wrappedDevice.AllocateMemory(1<<20, testMemoryType, 0)
	require.NoError(t, err)

	wrapped, err := wrappedDevice.CreateBuffer(createInfo)
	require.NoError(t, err)
	require.Equal(t, buffer, wrapped.VulkanBuffer())
	require.Equal(t, core1_0.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0b0110}, wrapped.MemoryRequirements())
	require.NoError(t, wrapped.BindMemory(wrappedMemory, 8192))

	wrapped.Destroy()
}

func TestWrapDeviceImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	device := coremocks.NewMockDevice(ctrl)
	memory := coremocks.EasyMockDeviceMemory(ctrl)
	image := coremocks.EasyMockImage(ctrl)

	createInfo := core1_0.ImageCreateInfo{
		ImageType:   core1_0.ImageType2D,
		Format:      core1_0.FormatA8B8G8R8UnsignedIntPacked,
		Extent:      core1_0.Extent3D{Width: 256, Height: 128, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     core1_0.Samples1,
		Usage:       core1_0.ImageUsageStorage,
	}
	device.EXPECT().AllocateMemory(gomock.Nil(), gomock.Any()).Return(memory, core1_0.VKSuccess, nil)
	device.EXPECT().CreateImage(gomock.Nil(), createInfo).Return(image, core1_0.VKSuccess, nil)
	image.EXPECT().MemoryRequirements().Return(&core1_0.MemoryRequirements{Size: 131072, Alignment: 65536, MemoryTypeBits: 0b0110})
	image.EXPECT().BindImageMemory(memory, 65536).Return(core1_0.VKErrorOutOfDeviceMemory, errors.New("bind failed"))
	image.EXPECT().Destroy(gomock.Nil())

	wrappedDevice := vulkan.WrapDevice(device, nil)
	wrappedMemory, err := wrappedDevice.AllocateMemory(1<<20, testMemoryType, 0)
	require.NoError(t, err)

	wrapped, err := wrappedDevice.CreateImage(createInfo)
	require.NoError(t, err)
	require.Equal(t, image, wrapped.VulkanImage())
	require.Equal(t, 131072, wrapped.MemoryRequirements().Size)
	require.Error(t, wrapped.BindMemory(wrappedMemory, 65536))

	wrapped.Destroy()
}
